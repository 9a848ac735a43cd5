package models

import "encoding/base64"

// ImageInput is a normalized image attachment. Either URL is set (remote
// image passed through as-is) or Data holds the decoded bytes.
type ImageInput struct {
	URL      string
	MIMEType string
	Data     []byte
}

// IsRemote reports whether the image is a pass-through URL.
func (i *ImageInput) IsRemote() bool {
	return i.URL != ""
}

// DataURI renders the image in the form accepted by chat-completion APIs.
func (i *ImageInput) DataURI() string {
	if i.IsRemote() {
		return i.URL
	}
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}
