package emails

import "strings"

// ReminderProps fills a payment reminder. Subject and Message may contain the
// placeholders {name}, {orderNumber}, {purpose} and {price}.
type ReminderProps struct {
	Name        string
	OrderNumber string
	Purpose     string
	Price       *float64
	Subject     string
	Message     string
	PaymentURL  string
	Support     Support
}

// DefaultReminderSubject is used when an admin leaves the subject empty
const DefaultReminderSubject = "تذكير بإتمام الدفع - {orderNumber} / Payment reminder"

// DefaultReminderMessage is the body used by scheduled reminders
const DefaultReminderMessage = `عزيزي {name}،

نود تذكيرك بأن طلبك "{purpose}" رقم {orderNumber} بانتظار إتمام الدفع بمبلغ {price}.

Dear {name}, your request {orderNumber} is awaiting payment of {price}.`

// Fill replaces the placeholders in s with the reminder's values
func (p ReminderProps) Fill(s string) string {
	price := ""
	if p.Price != nil {
		price = formatSAR(*p.Price)
	}
	return strings.NewReplacer(
		"{name}", p.Name,
		"{orderNumber}", p.OrderNumber,
		"{purpose}", p.Purpose,
		"{price}", price,
	).Replace(s)
}

func (p ReminderProps) ResolvedSubject() string {
	if strings.TrimSpace(p.Subject) == "" {
		return p.Fill(DefaultReminderSubject)
	}
	return p.Fill(p.Subject)
}

func (p ReminderProps) ResolvedMessage() string {
	if strings.TrimSpace(p.Message) == "" {
		return p.Fill(DefaultReminderMessage)
	}
	return p.Fill(p.Message)
}

// ReminderText is the plain-text alternative of Reminder
func ReminderText(p ReminderProps) string {
	var b strings.Builder
	b.WriteString(p.ResolvedMessage())
	b.WriteString("\n\n")
	if p.OrderNumber != "" {
		b.WriteString("رقم الطلب / Order: " + p.OrderNumber + "\n")
	}
	if p.Price != nil {
		b.WriteString("المبلغ / Amount: " + formatSAR(*p.Price) + "\n")
	}
	if p.PaymentURL != "" {
		b.WriteString(p.PaymentURL + "\n")
	}
	return b.String()
}
