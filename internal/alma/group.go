package alma

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
)

// Mandatory address children the API rejects updates without. Records
// missing them get a filler value rather than failing the reassignment.
var mandatoryAddressFields = []string{"line1", "email"}

const fillerValue = "FILLER"

// RewriteUserGroup returns the user document with its user_group element
// replaced and every address element carrying the mandatory children. The
// rest of the document passes through untouched, unknown elements
// included; the API treats a PUT as a full-record replace.
func RewriteUserGroup(userXML []byte, group string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(userXML); err != nil {
		return nil, fmt.Errorf("parse user record: %w", err)
	}

	groupEl := doc.FindElement("//user_group")
	if groupEl == nil {
		return nil, fmt.Errorf("user record has no user_group element")
	}
	groupEl.SetText(group)

	for _, addr := range doc.FindElements("//address") {
		for _, field := range mandatoryAddressFields {
			if addr.FindElement(field) == nil {
				addr.CreateElement(field).SetText(fillerValue)
			}
		}
	}

	return doc.WriteToBytes()
}

// ReassignGroup reads a user record, rewrites its group, and writes it
// back.
func (c *Client) ReassignGroup(ctx context.Context, barcode, group string) error {
	userXML, err := c.GetUser(ctx, barcode)
	if err != nil {
		return fmt.Errorf("fetch user %s: %w", barcode, err)
	}
	updated, err := RewriteUserGroup(userXML, group)
	if err != nil {
		return fmt.Errorf("rewrite user %s: %w", barcode, err)
	}
	if err := c.PutUser(ctx, barcode, updated); err != nil {
		return fmt.Errorf("update user %s: %w", barcode, err)
	}
	return nil
}
