package service

import (
	"go.uber.org/zap"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/model"
)

// Relay forwards call-setup messages between two connections. It stores
// nothing: routing runs over the connection registry, and a vanished
// target is a silent drop, the caller learns of departure from the
// participant-left broadcast.
type Relay struct {
	registry *Registry
	log      *zap.Logger
}

// NewRelay wires the signaling relay.
func NewRelay(registry *Registry, log *zap.Logger) *Relay {
	return &Relay{registry: registry, log: log}
}

// Call forwards an offer to the target as incoming-call.
func (r *Relay) Call(from *Conn, in model.SignalIn) {
	r.forward(from, in, model.EvIncomingCall)
}

// CallAccepted forwards an answer to the target as call-accepted.
func (r *Relay) CallAccepted(from *Conn, in model.SignalIn) {
	r.forward(from, in, model.EvCallAccepted)
}

// CallRejected forwards a rejection to the target as call-rejected.
func (r *Relay) CallRejected(from *Conn, in model.SignalIn) {
	r.forward(from, in, model.EvCallRejected)
}

// IceCandidate forwards an ICE candidate unchanged.
func (r *Relay) IceCandidate(from *Conn, in model.SignalIn) {
	r.forward(from, in, model.EvIceCandidate)
}

func (r *Relay) forward(from *Conn, in model.SignalIn, outEvent string) {
	target, ok := r.registry.Lookup(in.TargetConnectionID)
	if !ok {
		r.log.Debug("signal target gone, dropped",
			zap.String("target_connection_id", in.TargetConnectionID),
			zap.String("event", outEvent))
		return
	}
	frame, err := model.NewEnvelope(outEvent, model.SignalOut{
		Offer:     in.Offer,
		Answer:    in.Answer,
		Candidate: in.Candidate,
		Reason:    in.Reason,
		From:      from.PeerInfo(),
	})
	if err != nil {
		r.log.Error("marshal signal", zap.Error(err))
		return
	}
	target.Enqueue(frame)
}
