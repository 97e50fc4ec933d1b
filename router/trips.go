package router

import (
	"github.com/voltgrid/ocppj"
	"github.com/voltgrid/ocppj/internal/collection"
)

// pendingCalls correlates outbound Call unique ids with returning
// CallResult/CallError frames. Each entry is a single-slot rendezvous
// inbox: created by Call before the frame is sent, removed exactly once by
// whichever of reply arrival or timeout wins. Late replies whose entry is
// gone are dropped; OCPP-J is request-once, there is no retry.
type pendingCalls struct {
	inboxes *collection.SyncMap[string, chan *ocppj.Message]
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{inboxes: collection.NewSyncMap[string, chan *ocppj.Message]()}
}

func (p *pendingCalls) add(uniqueID string) chan *ocppj.Message {
	inbox := make(chan *ocppj.Message, 1)
	p.inboxes.Put(uniqueID, inbox)
	return inbox
}

// remove clears the entry and reports whether it was still present, so a
// second remove (reply racing the timeout) is a visible no-op.
func (p *pendingCalls) remove(uniqueID string) bool {
	_, ok := p.inboxes.GetAndDelete(uniqueID)
	return ok
}

// resolve deposits a reply into its inbox. It reports false when no entry
// exists (late or unknown unique id). The entry itself is cleared by the
// waiting caller, not here.
func (p *pendingCalls) resolve(msg *ocppj.Message) bool {
	inbox, ok := p.inboxes.Get(msg.UniqueID())
	if !ok {
		return false
	}
	select {
	case inbox <- msg:
	default:
		// slot already filled; duplicate reply
	}
	return true
}

func (p *pendingCalls) size() int {
	return p.inboxes.Size()
}
