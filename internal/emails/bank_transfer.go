package emails

import "fmt"

type BankTransferProps struct {
	Name        string
	OrderNumber string
	Purpose     string
	Amount      float64
	BankName    string
	IBAN        string
	Beneficiary string
	Support     Support
}

func BankTransferSubject(orderNumber string) string {
	return fmt.Sprintf("تعليمات التحويل البنكي - %s / Bank transfer instructions", orderNumber)
}

func BankTransferText(p BankTransferProps) string {
	return fmt.Sprintf(`عزيزي %s،
يرجى تحويل %s إلى:
البنك: %s
المستفيد: %s
الآيبان: %s
رقم الطلب: %s

Dear %s, please transfer %s to %s (%s), IBAN %s, reference %s.
`, p.Name, formatSAR(p.Amount), p.BankName, p.Beneficiary, p.IBAN, p.OrderNumber,
		p.Name, formatSAR(p.Amount), p.BankName, p.Beneficiary, p.IBAN, p.OrderNumber)
}
