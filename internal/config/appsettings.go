package config

import (
	"encoding/json"
	"os"

	"github.com/ncbedge/edgecore/internal/errs"
)

// rawSettings keeps unrelated keys as opaque json.RawMessage so a
// round-trip read-modify-write never drops fields this process doesn't
// know about. senderReceiverSet (the one object this process mutates) is
// itself kept as a map[string]json.RawMessage so sibling keys inside it
// survive a write too.
type rawSettings map[string]json.RawMessage

type senderReceiverSet map[string]json.RawMessage

// UpdateNCBIP rewrites only SenderReceiverSet.NCBIP inside the settings
// file at path, preserving every other key byte-for-byte. If the file
// does not exist yet, a fresh file containing only SenderReceiverSet is
// created.
func UpdateNCBIP(path, ncbIP string) error {
	const op = errs.Op("config.UpdateNCBIP")

	raw := rawSettings{}
	if content, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(content, &raw); err != nil {
			return errs.E(op, errs.KindIO, err, "settings file is not valid JSON")
		}
	} else if !os.IsNotExist(err) {
		return errs.E(op, errs.KindIO, err, "could not read settings file")
	}

	set := senderReceiverSet{}
	if existing, ok := raw["SenderReceiverSet"]; ok {
		// Best-effort: if the existing value doesn't match our shape, it
		// gets overwritten below rather than aborting the write.
		_ = json.Unmarshal(existing, &set)
	}

	encodedIP, err := json.Marshal(ncbIP)
	if err != nil {
		return errs.E(op, errs.KindOther, err, "could not encode NCBIP")
	}
	set["NCBIP"] = encodedIP

	encoded, err := json.Marshal(set)
	if err != nil {
		return errs.E(op, errs.KindOther, err, "could not encode SenderReceiverSet")
	}
	raw["SenderReceiverSet"] = encoded

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errs.E(op, errs.KindOther, err, "could not encode settings file")
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return errs.E(op, errs.KindIO, err, "could not write settings file")
	}
	return nil
}

// ReadNCBIP returns the currently persisted SenderReceiverSet.NCBIP, or
// "" if the file or the key does not exist yet.
func ReadNCBIP(path string) (string, error) {
	const op = errs.Op("config.ReadNCBIP")

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errs.E(op, errs.KindIO, err, "could not read settings file")
	}

	raw := rawSettings{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return "", errs.E(op, errs.KindIO, err, "settings file is not valid JSON")
	}

	existing, ok := raw["SenderReceiverSet"]
	if !ok {
		return "", nil
	}
	set := senderReceiverSet{}
	if err := json.Unmarshal(existing, &set); err != nil {
		return "", errs.E(op, errs.KindIO, err, "SenderReceiverSet is malformed")
	}
	ncbIP, ok := set["NCBIP"]
	if !ok {
		return "", nil
	}
	var ip string
	if err := json.Unmarshal(ncbIP, &ip); err != nil {
		return "", errs.E(op, errs.KindIO, err, "SenderReceiverSet.NCBIP is malformed")
	}
	return ip, nil
}
