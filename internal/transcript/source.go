package transcript

import (
	"github.com/muxgram/muxgram/internal/sessionmap"
)

// Source answers content questions about a bound session: where its
// transcript currently ends, and what assistant turns appeared after a
// marker. It resolves the file per call so a transcript that shows up
// late (session started moments ago) is picked up as soon as it exists.
type Source struct {
	locator *Locator
	reader  *Reader
}

func NewSource(configDir string) *Source {
	return &Source{
		locator: NewLocator(configDir),
		reader:  NewReader(),
	}
}

func (s *Source) Tail(b sessionmap.Binding) (int, error) {
	path, err := s.locator.Locate(b.Workdir, b.SessionID.String())
	if err != nil {
		return 0, err
	}
	return s.reader.Tail(path)
}

func (s *Source) After(b sessionmap.Binding, marker int) ([]Unit, int, error) {
	path, err := s.locator.Locate(b.Workdir, b.SessionID.String())
	if err != nil {
		return nil, 0, err
	}
	return s.reader.After(path, marker)
}
