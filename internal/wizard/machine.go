// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package wizard drives one customer's customization session as an
// explicit finite-state machine: stage a photo, choose a style, submit,
// then attach the result to the cart. Every operation is a named event;
// events that are not valid in the current state are rejected and leave
// the machine untouched.
package wizard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a step of the customization flow.
type State int

const (
	Idle State = iota
	PhotoStaged
	StyleChosen
	Submitting
	Result
	Error
	AddingToCart
	CartConfirmed
	CartError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PhotoStaged:
		return "photo_staged"
	case StyleChosen:
		return "style_chosen"
	case Submitting:
		return "submitting"
	case Result:
		return "result"
	case Error:
		return "error"
	case AddingToCart:
		return "adding_to_cart"
	case CartConfirmed:
		return "cart_confirmed"
	case CartError:
		return "cart_error"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition is returned for events not allowed in the current state.
	ErrInvalidTransition = errors.New("wizard: invalid transition")

	// ErrBusy is returned while a submission or cart request is in flight.
	ErrBusy = errors.New("wizard: request in progress")

	// ErrEmptyPhoto is returned when staging a photo without content.
	ErrEmptyPhoto = errors.New("wizard: empty photo")
)

// Messages shown to the customer for failures that have no server message.
const (
	MsgNoImageForCart = "Please generate an image before adding to cart."
	MsgGenericFailure = "Something went wrong. Please try again."
)

// Photo is a staged upload.
type Photo struct {
	Name string
	Data []byte
}

// Submission is what the machine hands to the Submitter.
type Submission struct {
	Photo     Photo
	StyleID   string
	ProductID string
}

// Outcome is a successful generation as reported by the server.
type Outcome struct {
	GeneratedImageID  string
	GeneratedImageURL string
	Message           string
}

// CartConfirmation is returned by a successful cart attachment.
type CartConfirmation struct {
	Message    string
	Properties map[string]string
}

// Submitter sends a submission to the customization endpoint.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (*Outcome, error)
}

// CartAdder attaches a generated image to the product in the cart.
type CartAdder interface {
	AddToCart(ctx context.Context, productID, generatedImageID string) (*CartConfirmation, error)
}

// Notification is the single message surface of the wizard.
type Notification struct {
	Message string
	IsError bool
}

// Snapshot is an immutable view of the machine.
type Snapshot struct {
	State        State
	StagedPhotos int
	StyleID      string
	ProductID    string
	Result       *Outcome
	Cart         *CartConfirmation
	Notification *Notification
}

// userMessager is implemented by errors that carry a customer-facing message.
type userMessager interface {
	UserMessage() string
}

// UserMessage extracts the customer-facing message from err.
func UserMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return MsgGenericFailure
}

// Machine is one session's state machine. All methods are safe for
// concurrent use; at most one submission or cart request runs at a time.
type Machine struct {
	mu        sync.Mutex
	state     State
	productID string
	photos    []Photo
	styleID   string
	result    *Outcome
	cart      *CartConfirmation
	note      *Notification
	updatedAt time.Time

	submitter Submitter
	cartAdder CartAdder
}

// New creates a machine in Idle for the given product.
func New(productID string, submitter Submitter, cartAdder CartAdder) *Machine {
	return &Machine{
		productID: productID,
		submitter: submitter,
		cartAdder: cartAdder,
		updatedAt: time.Now(),
	}
}

// SelectPhoto stages a photo. The first staged photo is the one submitted;
// later ones are kept alongside it.
func (m *Machine) SelectPhoto(p Photo) error {
	if len(p.Data) == 0 {
		return ErrEmptyPhoto
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Idle:
		m.state = PhotoStaged
	case PhotoStaged, StyleChosen, Error:
	default:
		return ErrInvalidTransition
	}
	m.photos = append(m.photos, p)
	m.touch()
	return nil
}

// SelectStyle chooses the style. Re-selecting replaces it.
func (m *Machine) SelectStyle(styleID string) error {
	if styleID == "" {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case PhotoStaged:
		m.state = StyleChosen
	case StyleChosen, Error:
	default:
		return ErrInvalidTransition
	}
	m.styleID = styleID
	m.touch()
	return nil
}

// Submit sends the staged photo and chosen style. It blocks until the
// Submitter returns, then the machine is in Result or Error.
func (m *Machine) Submit(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	switch m.state {
	case Submitting, AddingToCart:
		m.mu.Unlock()
		return m.Snapshot(), ErrBusy
	case StyleChosen:
	default:
		m.mu.Unlock()
		return m.Snapshot(), ErrInvalidTransition
	}
	sub := Submission{Photo: m.photos[0], StyleID: m.styleID, ProductID: m.productID}
	m.state = Submitting
	m.note = nil
	m.touch()
	m.mu.Unlock()

	out, err := m.submitter.Submit(ctx, sub)

	m.mu.Lock()
	if err == nil && (out == nil || out.GeneratedImageID == "") {
		err = errors.New("wizard: server reported success without an image")
	}
	if err != nil {
		m.state = Error
		m.note = &Notification{Message: UserMessage(err), IsError: true}
	} else {
		m.state = Result
		m.result = out
		m.cart = nil
		m.note = &Notification{Message: out.Message}
	}
	m.touch()
	m.mu.Unlock()

	return m.Snapshot(), err
}

// Acknowledge dismisses an error notification. From Error the machine
// returns to the furthest input step whose inputs are still present; from
// CartError it returns to Result so the cart can be retried.
func (m *Machine) Acknowledge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Error:
		switch {
		case len(m.photos) > 0 && m.styleID != "":
			m.state = StyleChosen
		case len(m.photos) > 0:
			m.state = PhotoStaged
		default:
			m.state = Idle
			m.styleID = ""
		}
	case CartError:
		m.state = Result
	default:
		return ErrInvalidTransition
	}
	m.note = nil
	m.touch()
	return nil
}

// AddToCart attaches the generated image to the product. Without a
// generated image the CartAdder is not called and the machine moves to
// Error with a customer-facing message.
func (m *Machine) AddToCart(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	switch m.state {
	case Submitting, AddingToCart:
		m.mu.Unlock()
		return m.Snapshot(), ErrBusy
	case CartConfirmed:
		m.mu.Unlock()
		return m.Snapshot(), ErrInvalidTransition
	case Result, CartError:
		if m.result != nil && m.result.GeneratedImageID != "" {
			break
		}
		fallthrough
	default:
		m.state = Error
		m.note = &Notification{Message: MsgNoImageForCart, IsError: true}
		m.touch()
		m.mu.Unlock()
		return m.Snapshot(), nil
	}
	productID, imageID := m.productID, m.result.GeneratedImageID
	m.state = AddingToCart
	m.note = nil
	m.touch()
	m.mu.Unlock()

	conf, err := m.cartAdder.AddToCart(ctx, productID, imageID)

	m.mu.Lock()
	if err != nil {
		m.state = CartError
		m.note = &Notification{Message: UserMessage(err), IsError: true}
	} else {
		m.state = CartConfirmed
		m.cart = conf
		m.note = &Notification{Message: conf.Message}
	}
	m.touch()
	m.mu.Unlock()

	return m.Snapshot(), err
}

// Reset discards everything and returns to Idle. Not allowed while a
// request is in flight.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Submitting || m.state == AddingToCart {
		return ErrBusy
	}
	m.state = Idle
	m.photos = nil
	m.styleID = ""
	m.result = nil
	m.cart = nil
	m.note = nil
	m.touch()
	return nil
}

// Snapshot returns the current view of the machine.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:        m.state,
		StagedPhotos: len(m.photos),
		StyleID:      m.styleID,
		ProductID:    m.productID,
	}
	if m.result != nil {
		r := *m.result
		s.Result = &r
	}
	if m.cart != nil {
		c := *m.cart
		c.Properties = make(map[string]string, len(m.cart.Properties))
		for k, v := range m.cart.Properties {
			c.Properties[k] = v
		}
		s.Cart = &c
	}
	if m.note != nil {
		n := *m.note
		s.Notification = &n
	}
	return s
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) lastUpdate() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatedAt
}

func (m *Machine) touch() { m.updatedAt = time.Now() }
