package transport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrProtocol reports an inbound frame that could not be understood.
var ErrProtocol = errors.New("protocol error")

const (
	CommandImageToImage = "image_to_image"
	CommandCancel       = "cancel"
)

// GenerationRequest is the outbound job request.
type GenerationRequest struct {
	Command        string `json:"command"`
	InputPath      string `json:"input_path"`
	PositivePrompt string `json:"positive_prompt"`
	NegativePrompt string `json:"negative_prompt"`
	SavePreviews   bool   `json:"save_previews"`
	WorkflowPath   string `json:"workflow_path"`
}

// CancelRequest interrupts the running job.
type CancelRequest struct {
	Command string `json:"command"`
}

// NewCancelRequest returns the cancel payload.
func NewCancelRequest() CancelRequest {
	return CancelRequest{Command: CommandCancel}
}

// Kind discriminates inbound messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindProgress
	KindPreview
	KindSuccess
	KindCancelled
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindPreview:
		return "preview"
	case KindSuccess:
		return "success"
	case KindCancelled:
		return "cancelled"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a decoded inbound message. Only the fields of its Kind are set.
type Message struct {
	Kind    Kind
	Percent float64  // progress
	Image   []byte   // preview frame bytes
	Images  []string // success, base64 image data in backend order
	Reason  string   // cancelled
	Detail  string   // error message, when the backend sent one
	Raw     []byte
}

type envelope struct {
	Type     string          `json:"type"`
	Status   string          `json:"status"`
	Progress *float64        `json:"progress"`
	Image    json.RawMessage `json:"image"`
	Images   []struct {
		ImageData string `json:"image_data"`
	} `json:"images"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Decode parses one inbound frame. Frames of an unrecognized kind decode to
// KindUnknown without error.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	msg := Message{Raw: raw}

	if env.Type == "progress" {
		if env.Progress == nil {
			return Message{}, fmt.Errorf("%w: progress without value", ErrProtocol)
		}
		msg.Kind = KindProgress
		msg.Percent = clampPercent(*env.Progress)
		return msg, nil
	}

	switch env.Status {
	case "success":
		msg.Kind = KindSuccess
		for _, img := range env.Images {
			msg.Images = append(msg.Images, img.ImageData)
		}
	case "preview":
		data, err := decodeImage(env.Image)
		if err != nil {
			return Message{}, err
		}
		msg.Kind = KindPreview
		msg.Image = data
	case "cancelled":
		msg.Kind = KindCancelled
		msg.Reason = env.Reason
	case "error":
		msg.Kind = KindError
		msg.Detail = env.Message
	}
	return msg, nil
}

// decodeImage accepts a base64 string or a JSON array of byte values.
func decodeImage(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: preview without image", ErrProtocol)
	}

	var s string
	if err := sonic.Unmarshal(raw, &s); err == nil {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: preview base64: %v", ErrProtocol, err)
		}
		return data, nil
	}

	var values []int
	if err := sonic.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: preview image is neither string nor byte array", ErrProtocol)
	}
	data := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: preview byte %d out of range", ErrProtocol, v)
		}
		data[i] = byte(v)
	}
	return data, nil
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
