// Package address turns the different ways callers name a mailbox into
// canonical *mail.Address values.
package address

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shineum/mailmessage/internal/email"
)

// Kind tags the variant held by a Recipient.
type Kind int

const (
	KindRaw Kind = iota
	KindNamed
	KindAddress
	KindContact
	KindContactList
)

// Recipient is one argument to an address-adding builder call. Build it with
// Raw, Named, Address, FromContact or FromContacts.
type Recipient struct {
	kind     Kind
	raw      string
	name     string
	addr     *mail.Address
	contacts []email.Contact
}

// Raw is an RFC 5322 address string such as "ann@example.com" or
// "Ann <ann@example.com>".
func Raw(addr string) Recipient {
	return Recipient{kind: KindRaw, raw: addr}
}

// Named is a bare address with a separate display name.
func Named(addr, name string) Recipient {
	return Recipient{kind: KindNamed, raw: addr, name: name}
}

// Address wraps an already parsed address.
func Address(addr *mail.Address) Recipient {
	return Recipient{kind: KindAddress, addr: addr}
}

// FromContact wraps a single contact.
func FromContact(c email.Contact) Recipient {
	return Recipient{kind: KindContact, contacts: []email.Contact{c}}
}

// FromContacts wraps a list of contacts.
func FromContacts(cs ...email.Contact) Recipient {
	return Recipient{kind: KindContactList, contacts: cs}
}

// Kind returns the variant tag.
func (r Recipient) Kind() Kind {
	return r.kind
}

// AddressFormatError reports input that could not be parsed as a mailbox.
type AddressFormatError struct {
	Input string
	Err   error
}

func (e *AddressFormatError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Input, e.Err)
}

func (e *AddressFormatError) Unwrap() error {
	return e.Err
}

var errNilAddress = errors.New("nil address")

// Resolve normalizes a recipient into one or more canonical addresses.
func Resolve(r Recipient) ([]*mail.Address, error) {
	switch r.kind {
	case KindRaw:
		a, err := parse(r.raw)
		if err != nil {
			return nil, err
		}
		return []*mail.Address{a}, nil
	case KindNamed:
		a, err := parse(r.raw)
		if err != nil {
			return nil, err
		}
		a.Name = r.name
		return []*mail.Address{a}, nil
	case KindAddress:
		if r.addr == nil {
			return nil, &AddressFormatError{Err: errNilAddress}
		}
		a := *r.addr
		return []*mail.Address{&a}, nil
	case KindContact, KindContactList:
		out := make([]*mail.Address, 0, len(r.contacts))
		for _, c := range r.contacts {
			a, err := parse(c.Address)
			if err != nil {
				return nil, err
			}
			a.Name = c.Name
			out = append(out, a)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown recipient kind %d", r.kind)
	}
}

// ResolveAll resolves every recipient in order. Nothing is returned unless
// all of them resolve.
func ResolveAll(rs ...Recipient) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, r := range rs {
		addrs, err := Resolve(r)
		if err != nil {
			return nil, err
		}
		out = append(out, addrs...)
	}
	return out, nil
}

// Parse parses a single RFC 5322 address.
func Parse(s string) (*mail.Address, error) {
	return parse(s)
}

func parse(s string) (*mail.Address, error) {
	trimmed := strings.TrimSpace(s)
	a, err := mail.ParseAddress(trimmed)
	if err != nil {
		return nil, &AddressFormatError{Input: s, Err: err}
	}
	return a, nil
}
