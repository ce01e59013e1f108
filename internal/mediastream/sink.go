package mediastream

// AudioSink receives decoded audio and stream events. It is where the
// realtime AI relay plugs in. Calls for one stream are made from a single
// goroutine.
type AudioSink interface {
	OnStart(s *Stream)
	OnAudio(s *Stream, track string, audio []byte)
	OnMark(s *Stream, name string)
	OnDTMF(s *Stream, digit string)
	OnStop(s *Stream)
}

// DiscardSink drops everything.
type DiscardSink struct{}

func (DiscardSink) OnStart(*Stream) {}
func (DiscardSink) OnAudio(*Stream, string, []byte) {}
func (DiscardSink) OnMark(*Stream, string) {}
func (DiscardSink) OnDTMF(*Stream, string) {}
func (DiscardSink) OnStop(*Stream) {}
