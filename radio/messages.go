package radio

import "fmt"

func blockedMessage() string {
	return "you are currently blocked from making song requests."
}

func duplicateSlotMessage() string {
	return "you already have a song in the queue. Please wait for it to play."
}

func duplicateIDMessage() string {
	return "that request is already queued."
}

func refundedIDMessage() string {
	return "that request was refunded and cannot be queued again."
}

func unresolvableMessage() string {
	return "couldn't fetch details for that link. Please make sure it's a valid video URL."
}

func durationMessage(c Channel, limit int64) string {
	kind := "donation"
	if c == ChannelReward {
		kind = "channel point"
	}
	return fmt.Sprintf("sorry, %s requests are limited to %s max.", kind, formatLimit(limit))
}

// formatLimit renders 600 as "10 minutes" and 330 as "5:30".
func formatLimit(seconds int64) string {
	min, sec := seconds/60, seconds%60
	if sec > 0 {
		return fmt.Sprintf("%d:%02d", min, sec)
	}
	return fmt.Sprintf("%d minutes", min)
}

func blacklistMessage(meta *Metadata, match BlacklistItem) string {
	msg := fmt.Sprintf("sorry, your request for %q", meta.Title)
	if match.Type == BlacklistAuthor {
		msg += fmt.Sprintf(" by %q", meta.Author)
	}
	return msg + " is currently blacklisted."
}

func admittedMessage(req *Request, position int) string {
	if req.IsDonation() && req.Donation != nil {
		return fmt.Sprintf("thanks for the %s donation! Your priority request for %q by %s is #%d in the queue.",
			formatAmount(req.Donation), req.Title, req.Author, position+1)
	}
	return fmt.Sprintf("your request for %q by %s is #%d in the queue.", req.Title, req.Author, position+1)
}

func refundMessage(req *Request, reason string) string {
	donation := ""
	if req.Donation != nil {
		donation = fmt.Sprintf(" (%s donation)", formatAmount(req.Donation))
	}
	return fmt.Sprintf("your song request %q has been refunded%s. Reason: %s", req.Title, donation, reason)
}

func noReferenceDonationMessage(amount float64, currency string) string {
	return fmt.Sprintf("thanks for the %s %s! If you want to request a song with your donation next time, put a YouTube link in the message.",
		trimAmount(amount), currency)
}

func noReferenceRedemptionMessage() string {
	return "please provide a YouTube link with your song request."
}

func formatAmount(d *DonationInfo) string {
	return fmt.Sprintf("%s %s", trimAmount(d.Amount), d.Currency)
}

func trimAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
