package p2p

import (
	"bytes"
	"context"
	"sync"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/model"
	"github.com/bitmessage-network/bmnode/settings"
	"github.com/bitmessage-network/bmnode/stores/inventory"
	"github.com/bitmessage-network/bmnode/stores/messages"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

// ackDataSize is the width of the token embedded in ack objects.
const ackDataSize = 32

// Dispatcher sits between the network and the application: inbound it
// decrypts admitted objects against the local identities and persists the
// plaintexts, outbound it signs, encrypts and proof-of-works messages and
// hands them to the network handler for flood-fill.
//
// Errors on the inbound path are logged and swallowed; a bad object must
// never take down the connection that delivered it. Outbound, once Send
// has accepted a message, progress is reported through the status machine
// only.
type Dispatcher struct {
	logger   ulogger.Logger
	settings *settings.Settings

	crypto    crypto.Cryptography
	inventory inventory.Store
	messages  messages.Store
	handler   NetworkHandler

	mu         sync.RWMutex
	identities []*model.Identity
}

func NewDispatcher(logger ulogger.Logger, tSettings *settings.Settings, c crypto.Cryptography,
	store inventory.Store, repo messages.Store, handler NetworkHandler) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		settings:  tSettings,
		crypto:    c,
		inventory: store,
		messages:  repo,
		handler:   handler,
	}
}

// AddIdentity registers an identity whose private keys inbound objects are
// tried against.
func (d *Dispatcher) AddIdentity(identity *model.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.identities = append(d.identities, identity)
}

func (d *Dispatcher) Identities() []*model.Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]*model.Identity{}, d.identities...)
}

// Receive implements MessageListener.
func (d *Dispatcher) Receive(ctx context.Context, obj *wire.MsgObject) {
	switch obj.ObjectType {
	case wire.ObjectTypeMsg:
		d.receiveMsg(ctx, obj)
	case wire.ObjectTypeBroadcast:
		d.receiveBroadcast(ctx, obj)
	case wire.ObjectTypeGetPubkey:
		d.receiveGetPubkey(ctx, obj)
	default:
		// pubkey and unknown objects are gossip we store but don't act on
	}
}

func (d *Dispatcher) receiveMsg(ctx context.Context, obj *wire.MsgObject) {
	// an ack object's whole payload is the token we handed out
	if d.markAcknowledged(ctx, obj.Payload) {
		return
	}

	typed, err := model.ObjectFromWire(obj)
	if err != nil {
		d.logger.Debugf("undecodable msg object: %v", err)
		return
	}

	msg, ok := typed.Payload().(*model.Msg)
	if !ok {
		return
	}

	for _, identity := range d.Identities() {
		if err := typed.Decrypt(d.crypto, identity.PrivateEncryptionKey); err != nil {
			if !errors.Is(err, errors.ErrDecryptionFailed) {
				d.logger.Debugf("failed to decrypt msg: %v", err)
			}

			continue
		}

		d.deliver(ctx, typed, msg.Plaintext())

		return
	}
}

func (d *Dispatcher) receiveBroadcast(ctx context.Context, obj *wire.MsgObject) {
	typed, err := model.ObjectFromWire(obj)
	if err != nil {
		d.logger.Debugf("undecodable broadcast object: %v", err)
		return
	}

	broadcast, ok := typed.Payload().(*model.Broadcast)
	if !ok {
		return
	}

	// broadcast keys are derived from the sending address; we can only
	// open broadcasts from addresses we subscribed to, whose derived
	// keys are registered as identities
	for _, identity := range d.Identities() {
		if err := typed.Decrypt(d.crypto, identity.PrivateEncryptionKey); err != nil {
			continue
		}

		d.deliver(ctx, typed, broadcast.Plaintext())

		return
	}
}

// deliver verifies the signature and persists an inbound plaintext.
func (d *Dispatcher) deliver(ctx context.Context, obj *model.ObjectMessage, p *model.Plaintext) {
	if p == nil {
		return
	}

	valid, err := obj.SignatureValid(d.crypto, p.From.Pubkey.SigningKey)
	if err != nil || !valid {
		d.logger.Warnf("dropping message with invalid signature: %v", err)
		return
	}

	p.Received = util.Now()
	p.Status = model.StatusAcknowledged
	p.AddLabel("inbox")
	p.AddLabel("unread")

	if d.messages != nil {
		if err := d.messages.Save(ctx, p); err != nil {
			d.logger.Errorf("failed to persist inbound message: %v", err)
			return
		}
	}

	d.logger.Infof("received message %s", p.ID)

	// relay the embedded ack so the sender learns the message arrived
	if len(p.Ack) > 0 {
		d.relayAck(ctx, p.Ack)
	}
}

// relayAck stores and floods the sender's pre-stamped ack object.
func (d *Dispatcher) relayAck(ctx context.Context, ack []byte) {
	ackObj := &wire.MsgObject{}
	if err := ackObj.Decode(bytes.NewReader(ack)); err != nil {
		d.logger.Debugf("embedded ack is not an object: %v", err)
		return
	}

	if err := d.crypto.CheckProofOfWork(ackObj, d.settings.P2P.NonceTrialsPerByte, d.settings.P2P.ExtraBytes); err != nil {
		d.logger.Debugf("embedded ack has insufficient proof of work: %v", err)
		return
	}

	if err := d.inventory.StoreObject(ctx, ackObj); err != nil {
		d.logger.Errorf("failed to store ack object: %v", err)
		return
	}

	d.handler.Offer(ackObj.InventoryVector())
}

// markAcknowledged flips a sent message to Acknowledged when payload is
// one of our outstanding ack tokens.
func (d *Dispatcher) markAcknowledged(ctx context.Context, payload []byte) bool {
	if d.messages == nil || len(payload) != ackDataSize {
		return false
	}

	p, err := d.messages.GetByAckData(ctx, payload)
	if err != nil {
		return false
	}

	if err := d.messages.UpdateStatus(ctx, p.ID, model.StatusAcknowledged); err != nil {
		d.logger.Errorf("failed to acknowledge message %s: %v", p.ID, err)
		return true
	}

	d.logger.Infof("message %s acknowledged", p.ID)

	return true
}

// receiveGetPubkey answers requests for one of our identities by
// publishing the matching pubkey object.
func (d *Dispatcher) receiveGetPubkey(ctx context.Context, obj *wire.MsgObject) {
	typed, err := model.ObjectFromWire(obj)
	if err != nil {
		return
	}

	request, ok := typed.Payload().(*model.GetPubkey)
	if !ok {
		return
	}

	for _, identity := range d.Identities() {
		if !bytes.Equal(identity.Address.Ripe, request.RipeOrTag) {
			continue
		}

		if err := d.publishPubkey(ctx, identity); err != nil {
			d.logger.Errorf("failed to publish pubkey: %v", err)
		}

		return
	}
}

func (d *Dispatcher) publishPubkey(ctx context.Context, identity *model.Identity) error {
	payload := model.NewPubkeyV3(identity.Address.Stream, *identity.Address.Pubkey)
	obj := model.NewObject(payload, util.NowShifted(28*util.Day), 0)

	if err := obj.Sign(d.crypto, identity.PrivateSigningKey); err != nil {
		return err
	}

	return d.stampStoreAndOffer(ctx, obj)
}

// Send pushes an outbound message through the status machine: sign,
// encrypt, proof of work, store, offer. The destination must be resolved
// to a pubkey-carrying address first.
func (d *Dispatcher) Send(ctx context.Context, identity *model.Identity, p *model.Plaintext) error {
	to := p.To()
	if to == nil || to.Pubkey == nil {
		p.Status = model.StatusPubkeyRequested

		if d.messages != nil {
			if err := d.messages.Save(ctx, p); err != nil {
				return err
			}
		}

		return d.requestPubkey(ctx, to)
	}

	if p.TTL <= 0 {
		p.TTL = 4 * util.Day
	}

	ack, ackData, err := d.buildAck(ctx, p)
	if err != nil {
		return err
	}

	p.Ack = ack
	p.AckData = ackData

	obj := model.NewObject(model.NewMsg(to.Stream, p), util.NowShifted(p.TTL), 0)

	if err := obj.Sign(d.crypto, identity.PrivateSigningKey); err != nil {
		return err
	}

	if err := obj.Encrypt(d.crypto, to.Pubkey.EncryptionKey); err != nil {
		return err
	}

	p.Status = model.StatusDoingProofOfWork
	if d.messages != nil {
		if err := d.messages.Save(ctx, p); err != nil {
			return err
		}
	}

	if err := d.stampStoreAndOfferTyped(ctx, obj, to.Pubkey.NonceTrialsPerByte, to.Pubkey.ExtraBytes); err != nil {
		return err
	}

	p.Status = model.StatusSent
	p.Sent = util.Now()
	p.NextTry = p.Sent + p.TTL

	if d.messages != nil {
		if err := d.messages.Save(ctx, p); err != nil {
			return err
		}
	}

	return nil
}

// buildAck creates the pre-stamped ack object the recipient will flood
// back to us.
func (d *Dispatcher) buildAck(ctx context.Context, p *model.Plaintext) (ack []byte, ackData []byte, err error) {
	ackData, err = d.crypto.RandomBytes(ackDataSize)
	if err != nil {
		return nil, nil, err
	}

	ttl := p.TTL
	if ttl <= 0 {
		ttl = 4 * util.Day
	}

	ackObj := wire.NewMsgObject([8]byte{}, util.NowShifted(ttl), wire.ObjectTypeMsg, 1, p.Stream(), ackData)

	if err = d.crypto.DoProofOfWork(ctx, ackObj, d.settings.P2P.NonceTrialsPerByte, d.settings.P2P.ExtraBytes); err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err = ackObj.Encode(&buf); err != nil {
		return nil, nil, err
	}

	return buf.Bytes(), ackData, nil
}

// requestPubkey floods a getpubkey object for an unresolved destination.
func (d *Dispatcher) requestPubkey(ctx context.Context, to *model.BitmessageAddress) error {
	if to == nil {
		return errors.NewInvalidArgumentError("no destination to request a pubkey for")
	}

	stream := to.Stream
	if stream == 0 {
		stream = 1
	}

	payload, err := model.NewGetPubkey(3, stream, to.Ripe)
	if err != nil {
		return err
	}

	obj := model.NewObject(payload, util.NowShifted(2*util.Day), 0)

	return d.stampStoreAndOffer(ctx, obj)
}

func (d *Dispatcher) stampStoreAndOffer(ctx context.Context, obj *model.ObjectMessage) error {
	return d.stampStoreAndOfferTyped(ctx, obj, d.settings.P2P.NonceTrialsPerByte, d.settings.P2P.ExtraBytes)
}

func (d *Dispatcher) stampStoreAndOfferTyped(ctx context.Context, obj *model.ObjectMessage, nonceTrialsPerByte, extraBytes uint64) error {
	if nonceTrialsPerByte < d.settings.P2P.NonceTrialsPerByte {
		nonceTrialsPerByte = d.settings.P2P.NonceTrialsPerByte
	}

	if extraBytes < d.settings.P2P.ExtraBytes {
		extraBytes = d.settings.P2P.ExtraBytes
	}

	msg, err := obj.Wire()
	if err != nil {
		return err
	}

	if err := d.crypto.DoProofOfWork(ctx, msg, nonceTrialsPerByte, extraBytes); err != nil {
		return err
	}

	if err := d.inventory.StoreObject(ctx, msg); err != nil {
		return err
	}

	d.handler.Offer(msg.InventoryVector())

	return nil
}
