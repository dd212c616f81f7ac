package llm

import "strings"

const pagesPlaceholder = "{pages}"

// promptTemplate names every bill field, asks for the dollar symbol to be
// dropped and shows the expected reply shape with the exact schema keys.
const promptTemplate = `Extract all the following values : Invoice ID, DESCRIPTION, Issue Date, UNIT PRICE, AMOUNT, Bill For, From and Terms from: {pages}
Expected output: remove any dollar symbols {'Invoice ID': '1001329', 'DESCRIPTION': 'Office Chair', 'Issue Date': '5/4/2023', 'UNIT PRICE': '1100.00', 'AMOUNT': '1100.00', 'Bill For': 'james', 'From': 'excel company', 'Terms': 'pay this now'}
`

// BuildPrompt substitutes the page text into the extraction template.
// The text is inserted verbatim, an empty text still yields a full prompt.
func BuildPrompt(pageText string) string {
	return strings.Replace(promptTemplate, pagesPlaceholder, pageText, 1)
}
