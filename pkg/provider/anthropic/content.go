package anthropic

import (
	"fmt"

	"github.com/rhuss/llmrouter/pkg/api"
)

// documentMediaType is the media type attached to inline file data.
const documentMediaType = "application/pdf"

// MapContent converts common message content to backend content. Plain
// text stays plain text; a part list becomes a block list in order.
func MapContent(c api.MessageContent) (MessageParam, error) {
	if !c.IsParts() {
		return MessageParam{Text: c.Text}, nil
	}

	blocks := make([]ContentBlock, 0, len(c.Parts))
	for i, part := range c.Parts {
		block, err := MapContentPart(part)
		if err != nil {
			return MessageParam{}, fmt.Errorf("content part %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	return MessageParam{Blocks: blocks}, nil
}

// MapContentPart converts one common content part to a backend block.
//
//	text       -> text
//	refusal    -> text (refusal text)
//	image_url  -> image with url source (ErrMissingImageURL without url)
//	file       -> document with base64 source (ErrEmptyFile without data)
//
// input_audio and unknown tags fail with *api.ModalityNotSupportedError.
func MapContentPart(part api.ContentPart) (ContentBlock, error) {
	switch part.Type {
	case api.ContentPartText:
		return ContentBlock{Type: BlockText, Text: part.Text}, nil

	case api.ContentPartRefusal:
		return ContentBlock{Type: BlockText, Text: part.Refusal}, nil

	case api.ContentPartImageURL:
		if part.ImageURL == nil || part.ImageURL.URL == "" {
			return ContentBlock{}, ErrMissingImageURL
		}
		return ContentBlock{
			Type:   BlockImage,
			Source: &Source{Type: SourceURL, URL: part.ImageURL.URL},
		}, nil

	case api.ContentPartFile:
		if part.File == nil || part.File.FileData == "" {
			return ContentBlock{}, ErrEmptyFile
		}
		return ContentBlock{
			Type: BlockDocument,
			Source: &Source{
				Type:      SourceBase64,
				MediaType: documentMediaType,
				Data:      part.File.FileData,
			},
		}, nil

	case api.ContentPartInputAudio:
		return ContentBlock{}, &api.ModalityNotSupportedError{Modality: "audio"}

	default:
		return ContentBlock{}, &api.ModalityNotSupportedError{
			Modality: part.Type,
			Detail:   fmt.Sprintf("unknown content part type %q: %s", part.Type, part.Raw()),
		}
	}
}
