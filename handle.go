package socketio

import (
	"sync"
)

// Delegate receives the lifecycle notifications of a Client.
// Callbacks run on session goroutines and must not block for long.
type Delegate interface {
	OnConnect(c *Client)
	OnMessage(c *Client, data string)
	OnClose(c *Client)
	OnError(c *Client, err error)
}

// DelegateFuncs is a Delegate built from optional funcs; nil fields are skipped
type DelegateFuncs struct {
	Connect func(c *Client)
	Message func(c *Client, data string)
	Close   func(c *Client)
	Error   func(c *Client, err error)
}

// OnConnect implements Delegate interface
func (d DelegateFuncs) OnConnect(c *Client) {
	if d.Connect != nil {
		d.Connect(c)
	}
}

// OnMessage implements Delegate interface
func (d DelegateFuncs) OnMessage(c *Client, data string) {
	if d.Message != nil {
		d.Message(c, data)
	}
}

// OnClose implements Delegate interface
func (d DelegateFuncs) OnClose(c *Client) {
	if d.Close != nil {
		d.Close(c)
	}
}

// OnError implements Delegate interface
func (d DelegateFuncs) OnError(c *Client, err error) {
	if d.Error != nil {
		d.Error(c, err)
	}
}

// EventHandler is called when a named event arrives; args is the raw JSON of the event args
type EventHandler interface {
	Call(c *Client, args string)
}

// EventFunc is an EventHandler func
type EventFunc func(c *Client, args string)

// Call implements EventHandler interface
func (h EventFunc) Call(c *Client, args string) {
	h(c, args)
}

type eventHandlers struct {
	handlers map[string]EventHandler
	sync.RWMutex
}

func newEventHandlers() *eventHandlers {
	return &eventHandlers{
		handlers: make(map[string]EventHandler),
	}
}

func (e *eventHandlers) On(event string, handler EventHandler) {
	e.Lock()
	e.handlers[event] = handler
	e.Unlock()
}

func (e *eventHandlers) Off(event string) {
	e.Lock()
	delete(e.handlers, event)
	e.Unlock()
}

func (e *eventHandlers) fire(c *Client, event, args string) bool {
	e.RLock()
	handler, ok := e.handlers[event]
	e.RUnlock()
	if ok && handler != nil {
		handler.Call(c, args)
		return true
	}
	return false
}
