package model

import "errors"

var (
	// ErrNoSnapshot is returned before any dataset has been loaded.
	ErrNoSnapshot = errors.New("no dataset loaded")
	// ErrUnknownEntity is returned for identifiers absent from the graph
	// and every filing channel.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownInvoice is returned for invoice ids absent from both channels.
	ErrUnknownInvoice = errors.New("unknown invoice")
)
