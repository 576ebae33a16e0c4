//go:build !linux

package btprovision

import "errors"

const rfcommChannel = 1

var errRFCOMMUnsupported = errors.New("btprovision: RFCOMM sockets require linux")

func listenSocket(channel uint8) (int, error) {
	return -1, errRFCOMMUnsupported
}

func acceptClient(listenFD int) (int, string, error) {
	return -1, "", errRFCOMMUnsupported
}
