package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/skip2/go-qrcode"

	"velora_back_end/internal/models"
)

// GenerateSepaQR génère un QR SEPA (EPC) en base64 prêt à mettre dans <img src="...">
func GenerateSepaQR(iban, bic, name, ref string, amount float64) (string, error) {
	// format EPC basique
	sepa := fmt.Sprintf(`BCD
001
1
SCT
%s
%s
%s
EUR%.2f
%s`, bic, name, iban, amount, ref)

	png, err := qrcode.Encode(sepa, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// GenerateInvoiceHTML construit la facture HTML rendue ensuite en PDF
func GenerateInvoiceHTML(order models.Order, companyName, iban, bic, ref, qrBase64 string) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>%.2f€</td>
				<td>%.2f€</td>
			</tr>`, item.Name, item.Quantity, item.Price, item.Price*float64(item.Quantity))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; color: #222; }
		h1 { color: #333; }
		table { width: 100%%; border-collapse: collapse; margin: 20px 0; }
		th, td { padding: 8px; border: 1px solid #ccc; text-align: left; }
		th { background-color: #f0f0f0; }
		.total { text-align: right; font-weight: bold; }
		.qr { margin-top: 30px; }
	</style>
</head>
<body>
	<h1>%s — Facture</h1>
	<p>Référence : <strong>%s</strong><br>
	Date : %s</p>

	<table>
		<thead>
			<tr><th>Produit</th><th>Quantité</th><th>Prix unitaire</th><th>Total</th></tr>
		</thead>
		<tbody>%s</tbody>
		<tfoot>
			<tr><td colspan="3" class="total">Total:</td><td class="total">%.2f€</td></tr>
		</tfoot>
	</table>

	<div class="qr">
		<p>Payable par virement SEPA (IBAN %s — BIC %s) :</p>
		<img src="%s" alt="QR SEPA" width="180" height="180">
	</div>
</body>
</html>`, companyName, ref, order.CreatedAt.Format("02/01/2006"), itemsHTML, order.Total, iban, bic, qrBase64)
}

// RenderInvoicePDF imprime le HTML en PDF via Chrome headless
func RenderInvoicePDF(html string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	// timeout pour éviter de bloquer
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var pdfBuf []byte

	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return pdfBuf, nil
}
