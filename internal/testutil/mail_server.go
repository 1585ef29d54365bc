package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/customeros/mailnotify/interfaces"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/models"
)

// FakeMailServer is an in-memory mailbox with a single folder. It implements
// interfaces.MailConnector and hands out sessions that read its state.
type FakeMailServer struct {
	mu sync.Mutex

	folder      string
	uidValidity uint32
	nextUID     uint32
	messages    map[uint32]models.MessageSummary

	// StarQuirk makes SearchSince behave like UID SEARCH n:*, which always
	// includes the highest uid even when it is below n.
	StarQuirk bool

	connectErr  error
	loginErr    error
	noopErr     error
	searchErr   error
	fetchErrs   []error
	selectErrs  []error
	connects    int
	logins      int
	openSession *FakeSession
}

func NewFakeMailServer(folder string, uidValidity uint32) *FakeMailServer {
	return &FakeMailServer{
		folder:      folder,
		uidValidity: uidValidity,
		nextUID:     1,
		messages:    make(map[uint32]models.MessageSummary),
	}
}

// AddMessage appends a message with the next uid and returns that uid.
func (s *FakeMailServer) AddMessage(from, subject string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := s.nextUID
	s.nextUID++
	s.messages[uid] = models.MessageSummary{
		UID:     uid,
		From:    from,
		Subject: subject,
		Date:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(uid) * time.Minute),
	}
	return uid
}

// SetNextUID moves the uid counter forward, as after deleted messages.
func (s *FakeMailServer) SetNextUID(uid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUID = uid
}

func (s *FakeMailServer) Expunge(uid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, uid)
}

// Rebuild assigns a new UIDVALIDITY and renumbers every message from 1.
func (s *FakeMailServer) Rebuild(uidValidity uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uids := s.sortedUIDs()
	renumbered := make(map[uint32]models.MessageSummary, len(uids))
	for i, uid := range uids {
		msg := s.messages[uid]
		msg.UID = uint32(i + 1)
		renumbered[msg.UID] = msg
	}
	s.messages = renumbered
	s.nextUID = uint32(len(uids) + 1)
	s.uidValidity = uidValidity
}

func (s *FakeMailServer) FailConnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = err
}

// RejectLogin makes every login fail the way Gmail refuses a bad app password.
// The real client surfaces only the reply text, without the response code.
func (s *FakeMailServer) RejectLogin() {
	s.FailLogin(errors.New("Invalid credentials (Failure)"))
}

func (s *FakeMailServer) FailLogin(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginErr = err
}

func (s *FakeMailServer) FailNoop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noopErr = err
}

func (s *FakeMailServer) FailSearch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchErr = err
}

// FailNextFetch queues an error for the next FetchHeaders call only.
func (s *FakeMailServer) FailNextFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErrs = append(s.fetchErrs, err)
}

// FailNextSelect queues an error for the next Select call only.
func (s *FakeMailServer) FailNextSelect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectErrs = append(s.selectErrs, err)
}

// Reset clears every injected failure.
func (s *FakeMailServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = nil
	s.loginErr = nil
	s.noopErr = nil
	s.searchErr = nil
	s.fetchErrs = nil
	s.selectErrs = nil
}

func (s *FakeMailServer) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *FakeMailServer) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Session returns the most recently opened session.
func (s *FakeMailServer) Session() *FakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openSession
}

func (s *FakeMailServer) Connect(ctx context.Context, host string, port int) (interfaces.MailTransport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connects++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	return &fakeTransport{server: s}, nil
}

func (s *FakeMailServer) sortedUIDs() []uint32 {
	uids := make([]uint32, 0, len(s.messages))
	for uid := range s.messages {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

type fakeTransport struct {
	server *FakeMailServer
	closed bool
}

func (t *fakeTransport) Login(username, secret string) (interfaces.MailSession, error) {
	t.server.mu.Lock()
	defer t.server.mu.Unlock()

	t.server.logins++
	if t.server.loginErr != nil {
		return nil, t.server.loginErr
	}
	session := &FakeSession{server: t.server}
	t.server.openSession = session
	return session, nil
}

func (t *fakeTransport) Logout() error {
	t.closed = true
	return nil
}

// FakeSession is an authenticated session on a FakeMailServer.
type FakeSession struct {
	server *FakeMailServer
	closed bool
}

func (f *FakeSession) Closed() bool {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	return f.closed
}

func (f *FakeSession) Select(folder string) (*models.FolderStatus, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return nil, mailnotify_errors.ErrSessionClosed
	}
	if len(s.selectErrs) > 0 {
		err := s.selectErrs[0]
		s.selectErrs = s.selectErrs[1:]
		return nil, err
	}
	if folder != s.folder {
		return nil, errors.Errorf("no such folder %s", folder)
	}
	return &models.FolderStatus{
		Name:        folder,
		Messages:    uint32(len(s.messages)),
		UIDValidity: s.uidValidity,
		UIDNext:     s.nextUID,
	}, nil
}

func (f *FakeSession) Noop() error {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return mailnotify_errors.ErrSessionClosed
	}
	return s.noopErr
}

func (f *FakeSession) HighestUID() (uint32, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return 0, mailnotify_errors.ErrSessionClosed
	}
	if s.searchErr != nil {
		return 0, s.searchErr
	}
	uids := s.sortedUIDs()
	if len(uids) == 0 {
		return 0, nil
	}
	return uids[len(uids)-1], nil
}

func (f *FakeSession) SearchSince(uid uint32) ([]uint32, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return nil, mailnotify_errors.ErrSessionClosed
	}
	if s.searchErr != nil {
		return nil, s.searchErr
	}

	all := s.sortedUIDs()
	result := make([]uint32, 0, len(all))
	for _, candidate := range all {
		if candidate > uid {
			result = append(result, candidate)
		}
	}
	if s.StarQuirk && len(result) == 0 && len(all) > 0 {
		result = append(result, all[len(all)-1])
	}
	return result, nil
}

func (f *FakeSession) FetchHeaders(uids []uint32) ([]models.MessageSummary, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return nil, mailnotify_errors.ErrSessionClosed
	}
	if len(s.fetchErrs) > 0 {
		err := s.fetchErrs[0]
		s.fetchErrs = s.fetchErrs[1:]
		return nil, err
	}

	result := make([]models.MessageSummary, 0, len(uids))
	// reversed, so callers cannot rely on server order
	for i := len(uids) - 1; i >= 0; i-- {
		if msg, ok := s.messages[uids[i]]; ok {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (f *FakeSession) Logout() error {
	f.server.mu.Lock()
	defer f.server.mu.Unlock()
	f.closed = true
	return nil
}
