package email

import "net/mail"

// Contact is a display name and address pair.
type Contact struct {
	Name    string
	Address string
}

// MailAddress converts the contact into the canonical address value.
// The address is not validated here; see the address package.
func (c Contact) MailAddress() *mail.Address {
	return &mail.Address{Name: c.Name, Address: c.Address}
}

// String formats the contact as it would appear in a header.
func (c Contact) String() string {
	return c.MailAddress().String()
}
