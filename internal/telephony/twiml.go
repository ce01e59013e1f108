package telephony

import (
	"github.com/twilio/twilio-go/twiml"
)

// FallbackResponse is returned when markup cannot be rendered at all.
const FallbackResponse = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>We're sorry, an error occurred. Goodbye.</Say><Hangup/></Response>`

// Parameter is a custom parameter forwarded to the media stream's start frame.
type Parameter struct {
	Name  string
	Value string
}

// StreamSpec describes a bidirectional media stream.
type StreamSpec struct {
	URL        string
	Name       string
	Parameters []Parameter
}

// StreamResponse renders a <Connect><Stream> document. Parameters with an
// empty value are omitted.
func StreamResponse(spec StreamSpec) (string, error) {
	var params []twiml.Element
	for _, p := range spec.Parameters {
		if p.Value == "" {
			continue
		}
		params = append(params, twiml.VoiceParameter{Name: p.Name, Value: p.Value})
	}

	stream := twiml.VoiceStream{
		Url:           spec.URL,
		Name:          spec.Name,
		InnerElements: params,
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	return twiml.Voice([]twiml.Element{connect})
}

// HangupResponse renders a spoken message followed by a hangup.
func HangupResponse(message string) (string, error) {
	say := &twiml.VoiceSay{Message: message}
	return twiml.Voice([]twiml.Element{say, twiml.VoiceHangup{}})
}
