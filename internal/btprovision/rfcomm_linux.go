//go:build linux

// Package btprovision implements the Bluetooth RFCOMM provisioning
// server: a small serial-profile protocol a companion app speaks to set
// the device's Wi-Fi credentials without a prior network connection.
//
// This file is the raw-socket layer. Go's net package has no RFCOMM
// support and unix.Sockaddr's single method is unexported, so an
// external package cannot implement it — bind and accept go through
// unix.Syscall directly against a hand-rolled sockaddr_rc buffer that
// mirrors the kernel's stable struct layout, instead of the higher-level
// unix.Bind/unix.Accept wrappers.
package btprovision

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// btprotoRFCOMM is Linux's BTPROTO_RFCOMM (bluetooth.h); x/sys/unix does
// not export it since it's specific to AF_BLUETOOTH, not a generic
// socket family constant.
const btprotoRFCOMM = 3

// rfcommChannel is the single channel the provisioning service listens
// on, matching the SDP record it best-effort registers.
const rfcommChannel = 1

// sockaddrRCSize is sizeof(struct sockaddr_rc): 2-byte family + 6-byte
// address + 1-byte channel.
const sockaddrRCSize = 9

// bdaddrAny is the wildcard Bluetooth device address, equivalent to
// BDADDR_ANY: bind to any local adapter.
var bdaddrAny = [6]byte{}

// encodeSockaddrRC packs family/bdaddr/channel into the exact byte
// layout the kernel expects for struct sockaddr_rc.
func encodeSockaddrRC(bdaddr [6]byte, channel uint8) []byte {
	buf := make([]byte, sockaddrRCSize)
	binary.LittleEndian.PutUint16(buf[0:2], unix.AF_BLUETOOTH)
	copy(buf[2:8], bdaddr[:])
	buf[8] = channel
	return buf
}

func decodeBdaddr(buf []byte) [6]byte {
	var b [6]byte
	if len(buf) >= 8 {
		copy(b[:], buf[2:8])
	}
	return b
}

// listenSocket opens, binds, and listens on an RFCOMM socket on the
// given channel. SO_REUSEADDR is set so a quick restart doesn't hit
// "address already in use".
func listenSocket(channel uint8) (int, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, btprotoRFCOMM)
	if err != nil {
		return -1, fmt.Errorf("btprovision: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("btprovision: setsockopt SO_REUSEADDR: %w", err)
	}

	if err := bindRC(fd, bdaddrAny, channel); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, 5); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("btprovision: listen: %w", err)
	}

	return fd, nil
}

// bindRC issues the raw bind(2) syscall with a sockaddr_rc buffer.
func bindRC(fd int, bdaddr [6]byte, channel uint8) error {
	buf := encodeSockaddrRC(bdaddr, channel)
	_, _, errno := unix.Syscall(unix.SYS_BIND,
		uintptr(fd),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)))
	if errno != 0 {
		return fmt.Errorf("btprovision: bind: %w", errno)
	}
	return nil
}

// acceptClient accepts one connection and returns the client fd and its
// peer Bluetooth address in "AA:BB:CC:DD:EE:FF" form.
func acceptClient(listenFD int) (int, string, error) {
	peerBuf := make([]byte, sockaddrRCSize)
	addrlen := uint32(len(peerBuf))

	nfd, _, errno := unix.Syscall(unix.SYS_ACCEPT,
		uintptr(listenFD),
		uintptr(unsafe.Pointer(&peerBuf[0])),
		uintptr(unsafe.Pointer(&addrlen)))
	if errno != 0 {
		return -1, "", fmt.Errorf("btprovision: accept: %w", errno)
	}

	bdaddr := decodeBdaddr(peerBuf)
	return int(nfd), bdaddrString(bdaddr), nil
}

func bdaddrString(b [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[5], b[4], b[3], b[2], b[1], b[0])
}
