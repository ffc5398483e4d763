package parfor

import "github.com/baxromumarov/parfor/syncq"

// message is everything the manager inbox carries: *run from customers,
// *bundle from workers, plus stats and close requests from the Scheduler.
type message interface {
	isMessage()
}

func (*run) isMessage()    {}
func (*bundle) isMessage() {}

type statsRequest struct {
	reply *syncq.Queue[Stats]
}

func (statsRequest) isMessage() {}

type closeRequest struct {
	reply *syncq.Queue[error]
	final *Stats // written before the reply
}

func (closeRequest) isMessage() {}
