package model

import (
	"github.com/bitmessage-network/bmnode/wire"
)

// ObjectFromWire reconstructs the typed payload variant from a raw object.
// Unknown type and version combinations come back as Generic so they can
// still be stored and relayed; decode failures of known variants are
// returned as errors.
func ObjectFromWire(msg *wire.MsgObject) (*ObjectMessage, error) {
	payload, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}

	o := &ObjectMessage{
		nonce:       msg.Nonce,
		expiresTime: msg.ExpiresTime,
		objectType:  msg.ObjectType,
		version:     msg.Version,
		stream:      msg.Stream,
		payload:     payload,

		// pin the bytes exactly as received, so re-encoding and the
		// inventory vector are stable even for variants we normalize
		encodedPayload: msg.Payload,
	}

	return o, nil
}

func decodePayload(msg *wire.MsgObject) (ObjectPayload, error) {
	switch msg.ObjectType {
	case wire.ObjectTypeGetPubkey:
		switch msg.Version {
		case 2, 3, 4:
			return decodeGetPubkey(msg.Version, msg.Stream, msg.Payload)
		}

	case wire.ObjectTypePubkey:
		switch msg.Version {
		case 2:
			return decodePubkeyV2(msg.Stream, msg.Payload)
		case 3:
			return decodePubkeyV3(msg.Stream, msg.Payload)
		case 4:
			return decodePubkeyV4(msg.Stream, msg.Payload)
		}

	case wire.ObjectTypeMsg:
		if msg.Version == 1 {
			return decodeMsg(msg.Stream, msg.Payload), nil
		}

	case wire.ObjectTypeBroadcast:
		switch msg.Version {
		case 4, 5:
			return decodeBroadcast(msg.Version, msg.Stream, msg.Payload)
		}
	}

	return NewGeneric(msg.ObjectType, msg.Version, msg.Stream, msg.Payload), nil
}
