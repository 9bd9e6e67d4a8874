package publish

import (
	"fmt"
	"html"

	"github.com/zhenevahq/zheneva/internal/listing"
)

// BuildCaption renders the public channel post for a submission. Every
// user-supplied field is escaped for Telegram's HTML parse mode before
// interpolation so submitted content cannot inject markup.
func BuildCaption(kind listing.Kind, p listing.Payload) string {
	if kind == listing.KindRequest {
		author := p.AuthorUsername
		if author == "" {
			author = "hidden"
		}
		return fmt.Sprintf(
			"<b>🔍 Looking for housing</b>\n\n%s\n\n<b>👤 Author:</b> @%s",
			html.EscapeString(p.Description),
			html.EscapeString(author),
		)
	}

	header := "Long-term rental"
	priceSuffix := "₽/month"
	if kind == listing.KindOfferDaily {
		header = "Daily rental"
		priceSuffix = "₽/night"
	}
	return fmt.Sprintf(
		"<b>🏠 %s</b>\n\n%s\n\n📍 <b>Address:</b> %s\n💰 <b>Price:</b> %d %s\n📞 <b>Contact:</b> %s",
		header,
		html.EscapeString(p.Description),
		html.EscapeString(p.Address),
		p.Price,
		priceSuffix,
		html.EscapeString(p.Contact),
	)
}
