package flow

// User-facing prompt texts. Kept in one place so the wording can be swapped
// out without touching transition logic.
const (
	textWelcome = "Hello! I can help you rent out or find housing.\n\nWhat would you like to do?"

	buttonOffer   = "🏠 Rent out housing"
	buttonRequest = "🔍 Looking for housing"

	textChooseTerm = "Great! Do you want to rent it out long-term or daily?"
	buttonLongTerm = "🗓 Long-term"
	buttonDaily    = "☀️ Daily"

	textAskOfferDescription = "Now please write a detailed description of the place: " +
		"number of rooms, condition, furniture, appliances and so on. " +
		"Everything in a single message."
	textAskRequestDescription = "Understood. Describe in one message what kind of housing " +
		"you are looking for (area, number of rooms, budget and so on). " +
		"Property owners will see this request."

	textAskPriceMonthly = "Great. What is the price in rubles per month? Just send a number."
	textAskPriceNightly = "Great. What is the price in rubles per night? Just send a number."
	textPriceInvalid    = "Please send the price as digits only, without any other symbols."

	textAskFirstPhoto = "Got it. Now send your best photo. You can add more afterwards."
	textSendNextPhoto = "Send the next photo."
	textPhotoLimit    = "The limit of 5 photos is reached. Tap Finish to continue."
	textNeedPhoto     = "Please send a photo."
	alertNeedOnePhoto = "Please send at least one photo."

	buttonAddMore = "➕ Add another"
	buttonFinish  = "✅ Finish"

	textPhotosSaved = "Great, photos added."
	textAskContact  = "Last step: send a contact phone number or your Telegram username."

	textChooseFromMenu = "Please pick one of the options above."
	textStartOver      = "To begin, please use the /start command."

	// TextThanks confirms a finished submission; sent by the router after the
	// submission row is persisted.
	TextThanks = "Thank you! Your listing was sent to moderation and will appear " +
		"in the channel right after review."
)
