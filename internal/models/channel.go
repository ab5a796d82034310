package models

import (
	"fmt"
	"strings"
)

// Channel is the upload channel a transaction's source is prefixed with
type Channel string

const (
	ChannelStripe       Channel = "Stripe"
	ChannelWellsFargo   Channel = "Wells Fargo"
	ChannelGoogleSheets Channel = "Google Sheets"
)

// SourceSeparator joins a channel to the uploaded file name
const SourceSeparator = " - "

// SourceFor builds the channel-prefixed source recorded for an uploaded file
func (c Channel) SourceFor(filename string) string {
	if filename == "" {
		return string(c)
	}
	return string(c) + SourceSeparator + filename
}

// ChannelOf returns the channel prefix of a source string
func ChannelOf(source string) Channel {
	if i := strings.Index(source, SourceSeparator); i >= 0 {
		return Channel(source[:i])
	}
	return Channel(source)
}

// UploadType discriminates the two kinds of statement uploads
type UploadType string

const (
	// UploadTypeStripe is a payment-processor (credit card) export
	UploadTypeStripe UploadType = "stripe"
	// UploadTypeBank is a bank statement export
	UploadTypeBank UploadType = "bank"
)

// ParseUploadType validates a raw upload type
func ParseUploadType(raw string) (UploadType, error) {
	switch t := UploadType(strings.ToLower(strings.TrimSpace(raw))); t {
	case UploadTypeStripe, UploadTypeBank:
		return t, nil
	default:
		return "", fmt.Errorf("invalid upload type %q: must be stripe or bank", raw)
	}
}

// Channel maps the upload type to the channel its rows are stored under
func (u UploadType) Channel() Channel {
	if u == UploadTypeStripe {
		return ChannelStripe
	}
	return ChannelWellsFargo
}

// IsCreditCard reports whether files of this type carry card processor data
func (u UploadType) IsCreditCard() bool {
	return u == UploadTypeStripe
}
