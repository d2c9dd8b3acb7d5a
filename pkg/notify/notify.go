// Package notify is the boundary to whatever presents results to the user.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/excaliboard/excaliboard/pkg/errors"
)

// Notifier receives user-visible success and error messages.
type Notifier interface {
	Success(msg string)
	Error(err error)
}

// Console prints notifications as single lines.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "✅ %s\n", msg)
}

func (c *Console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "⚠️  %s\n", Message(err))
}

// Message maps an error to the text shown to the user.
func Message(err error) string {
	switch errors.KindOf(err) {
	case errors.KindInvalidMediaType:
		return fmt.Sprintf("Please select an image file (%v)", err)
	case errors.KindImageTooLarge:
		return fmt.Sprintf("Image is too large (%v)", err)
	case errors.KindCameraUnavailable:
		return fmt.Sprintf("Unable to access camera (%v)", err)
	case errors.KindCaptureFailed:
		return fmt.Sprintf("Could not take the photo, try again (%v)", err)
	case errors.KindConversionFailed, errors.KindInvalidResponseShape:
		return fmt.Sprintf("Failed to convert image (%v)", err)
	case errors.KindBusy:
		return "Still converting the previous image"
	default:
		return err.Error()
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(error)    {}
