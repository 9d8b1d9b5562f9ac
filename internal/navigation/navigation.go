package navigation

import (
	"context"
	"strings"
	"sync"
)

const (
	LoginPath   = "/login"
	AdminPath   = "/admin"
	FacultyPath = "/faculty"
	StudentPath = "/student"
)

// Navigator performs the navigation side effects of the session layer.
type Navigator interface {
	Navigate(path string)
	CurrentPath() string
}

type ctxKey struct{}

// WithNavigator binds n to the view served under ctx. Session side effects
// triggered while serving it navigate n instead of the manager's default.
func WithNavigator(ctx context.Context, n Navigator) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

func FromContext(ctx context.Context) (Navigator, bool) {
	n, ok := ctx.Value(ctxKey{}).(Navigator)
	return n, ok && n != nil
}

// IsLoginPath reports whether path shows the login view.
func IsLoginPath(path string) bool {
	return strings.Contains(path, LoginPath)
}

// OnLoginView reports whether the navigator already shows the login view.
func OnLoginView(n Navigator) bool {
	return IsLoginPath(n.CurrentPath())
}

// ToLogin navigates to the login view unless it is already shown.
func ToLogin(n Navigator) {
	if n == nil || OnLoginView(n) {
		return
	}
	n.Navigate(LoginPath)
}

// Recorder keeps the navigation history in memory. The zero value is ready
// to use.
type Recorder struct {
	mu      sync.Mutex
	current string
	history []string
}

func NewRecorder(start string) *Recorder {
	return &Recorder{current: start}
}

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = path
	r.history = append(r.history, path)
}

func (r *Recorder) CurrentPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Recorder) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}
