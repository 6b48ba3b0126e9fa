package render

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/sanitize"
)

// Site identifies the site the notifications come from
type Site struct {
	Name string
	URL  string
}

// MailOptions controls what a new-mail notification includes
type MailOptions struct {
	DisplayRecipient bool
	IncludeBody      bool
}

// OrderOptions controls what an order notification includes
type OrderOptions struct {
	Items    bool
	Shipping bool
	Billing  bool
}

// FormatNewMail formats a notification for an outgoing site e-mail
func FormatNewMail(site Site, mail *event.NewMail, opts MailOptions) (string, error) {
	var msg strings.Builder

	to := ""
	if opts.DisplayRecipient {
		to = mail.To
	}
	msg.WriteString(fmt.Sprintf("%s: %s\n\n", site.Name, to))
	msg.WriteString(mail.Subject + "\n\n")

	if opts.IncludeBody {
		body, err := sanitize.ToText(mail.Message)
		if err != nil {
			return "", fmt.Errorf("converting mail body: %w", err)
		}
		msg.WriteString(body + "\n\n")
	}

	msg.WriteString(site.URL)
	return msg.String(), nil
}

// FormatNewComment formats a notification for a new comment
func FormatNewComment(site Site, c *event.NewComment) string {
	var msg strings.Builder

	msg.WriteString(site.Name + ":\n\n")
	msg.WriteString("New Comment: \n-----\n\n")
	msg.WriteString(c.Text + "\n\n")
	msg.WriteString("Comment Link: " + c.Link)

	return msg.String()
}

// FormatNewPost formats a notification for a newly published post
func FormatNewPost(site Site, p *event.Post) string {
	var msg strings.Builder

	msg.WriteString(site.Name + ":\n\n")
	msg.WriteString("New Post: \n-----\n\n")
	msg.WriteString(p.Title + "\n\n")
	msg.WriteString("Post URL: " + p.Link)

	return msg.String()
}

// FormatNewUser formats a notification for a user registration
func FormatNewUser(site Site, _ *event.NewUser) string {
	return fmt.Sprintf("%s:\n\nNew User Registered.\n\n%s", site.Name, site.URL)
}

// FormatOrder formats a notification for an order status change
func FormatOrder(site Site, o *event.OrderStatusChanged, opts OrderOptions) string {
	var msg strings.Builder

	msg.WriteString(site.Name + ":\n\n")
	msg.WriteString(fmt.Sprintf("New order: [%s]\n-----\n\n", o.To))

	if opts.Items {
		for _, item := range o.Order.Items {
			msg.WriteString(fmt.Sprintf("%s * %d\n", item.Name, item.Quantity))
		}
		msg.WriteString("\n")
	}

	msg.WriteString(fmt.Sprintf("Total: %s\n\n", o.Order.Total.String()))

	if opts.Shipping {
		writeAddress(&msg, "Shipping Info:", o.Order.Shipping, false)
	}
	if opts.Billing {
		writeAddress(&msg, "Billing Info:", o.Order.Billing, true)
	}

	msg.WriteString(site.URL)
	return msg.String()
}

// writeAddress writes an address block. Billing blocks also carry contact details.
func writeAddress(msg *strings.Builder, title string, a event.Address, contact bool) {
	msg.WriteString(title + "\n-----\n")
	msg.WriteString(fmt.Sprintf("Name: %s %s\n", a.FirstName, a.LastName))
	if contact {
		msg.WriteString("Email: " + a.Email + "\n")
		msg.WriteString("Phone: " + a.Phone + "\n")
	}
	msg.WriteString("Country: " + a.Country + "\n")
	msg.WriteString("City: " + a.City + "\n")
	msg.WriteString("Postcode: " + a.Postcode + "\n")
	msg.WriteString("State: " + a.State + "\n")
	msg.WriteString("Address 1: " + a.Address1 + "\n")
	msg.WriteString("Address 2: " + a.Address2 + "\n\n")
}
