package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	rtsup "gagbot/internal/runtime/supervisor"
	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
	"gagbot/pkg/tgui"
)

const (
	DefaultTimeout   = 15 * time.Second
	defaultQueueSize = 256
)

type Router struct {
	mu       sync.RWMutex
	cmds     map[string]Command
	alias    map[string]string
	ordered  []Command
	callback map[string]map[string]CallbackRoute // namespace -> action

	log     logx.Logger
	adapter kit.Adapter
	timeout time.Duration
	workers int

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	jobs chan func()
}

type Option func(*Router)

func WithWorkers(n int) Option { return func(r *Router) { r.workers = n } }

func WithQueueSize(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.jobs = make(chan func(), n)
		}
	}
}

func WithTimeout(d time.Duration) Option { return func(r *Router) { r.timeout = d } }

func New(log logx.Logger, adapter kit.Adapter, opts ...Option) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		cmds:     map[string]Command{},
		alias:    map[string]string{},
		callback: map[string]map[string]CallbackRoute{},
		log:      log.With(logx.String("comp", "telegram.router")),
		adapter:  adapter,
		timeout:  DefaultTimeout,
		jobs:     make(chan func(), defaultQueueSize),
	}
	for _, o := range opts {
		o(r)
	}
	if r.workers <= 0 {
		r.workers = max(2, runtime.NumCPU())
	}
	return r
}

// SetRegistry replaces the command and callback tables. A "help" command is
// injected unless cmds already has one.
func (m *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	byName := map[string]Command{}
	alias := map[string]string{}
	ordered := make([]Command, 0, len(cmds)+1)

	add := func(c Command) {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c.Name, "/")))
		if name == "" || c.Handle == nil {
			return
		}
		if _, dup := byName[name]; dup {
			m.log.Warn("duplicate command ignored", logx.String("cmd", name))
			return
		}
		c.Name = name
		byName[name] = c
		ordered = append(ordered, c)
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || a == name {
				continue
			}
			if _, taken := alias[a]; !taken {
				alias[a] = name
			}
		}
	}
	for _, c := range cmds {
		add(c)
	}
	if _, ok := byName["help"]; !ok {
		add(Command{
			Name:        "help",
			Aliases:     []string{"h"},
			Description: "List available commands",
			Handle: func(ctx context.Context, req *Request) error {
				_, err := req.Reply(ctx, m.HelpText(), nil)
				return err
			},
		})
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, r := range cbs {
		ns := strings.TrimSpace(r.Namespace)
		act := strings.TrimSpace(r.Action)
		if ns == "" || act == "" || r.Handle == nil {
			continue
		}
		if cb[ns] == nil {
			cb[ns] = map[string]CallbackRoute{}
		}
		cb[ns][act] = r
	}

	m.mu.Lock()
	m.cmds, m.alias, m.ordered, m.callback = byName, alias, ordered, cb
	m.mu.Unlock()
}

// Commands returns the registered commands sorted by name.
func (m *Router) Commands() []Command {
	m.mu.RLock()
	out := append([]Command(nil), m.ordered...)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Menu is the command list published to the chat client's "/" menu.
func (m *Router) Menu() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return buildMenu(m.ordered)
}

// PublishMenu pushes Menu to adapters that support it.
func (m *Router) PublishMenu(ctx context.Context) error {
	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, m.Menu())
}

// Supervisor is nil unless DispatchLoop is running.
func (m *Router) Supervisor() *rtsup.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *Router) setSupervisor(sup *rtsup.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

func (m *Router) tryEnqueue(fn func()) bool {
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop routes updates until ctx is done or updates is closed.
func (m *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					m.runJob(idx, job)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
		)
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.setSupervisor(nil, false)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *Router) runJob(worker int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (m *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		m.routeMessage(ctx, up)
	case kit.UpdateCallback:
		m.routeCallback(ctx, up)
	}
}

// parseCommand splits "/name@bot arg1 arg2" into its lowercased name and args.
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), parts[1:], true
}

func (m *Router) lookup(name string) (Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cmds[name]; ok {
		return c, true
	}
	if target, ok := m.alias[name]; ok {
		c, ok := m.cmds[target]
		return c, ok
	}
	return Command{}, false
}

func (m *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	cmd, ok := m.lookup(name)
	if !ok {
		// Group chats carry other bots' commands; stay quiet.
		m.log.Debug("unknown command", logx.String("cmd", name), logx.Int64("chat_id", msg.ChatID))
		return
	}

	req := m.newRequest(up, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, msg.FromID, cmd.Name)
	req.FromUsername = msg.FromUsername
	req.MessageID = msg.ID
	req.Args = args

	final := m.chain(cmd.Handle, cmd.Timeout)
	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		m.log.Warn("command queue full", logx.String("cmd", cmd.Name))
		_, _ = m.adapter.SendText(ctx, req.Chat, "busy, try again", nil)
	}
}

func (m *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	ns, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	m.mu.RLock()
	route, ok := m.callback[ns][action]
	m.mu.RUnlock()
	if !ok {
		m.log.Debug("unknown callback", logx.String("data", cb.Data))
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := m.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, "cb:"+ns+":"+action)
	req.MessageID = cb.MessageID
	req.CallbackID = cb.ID
	req.Payload = payload

	h := func(c context.Context, r *Request) error { return route.Handle(c, r, payload) }
	final := m.chain(h, route.Timeout)
	if !m.tryEnqueue(func() {
		_ = final(ctx, req)
		// stop the client's loading spinner if the handler did not answer
		_ = req.Answer(ctx, "")
	}) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (m *Router) newRequest(up kit.Update, chat kit.ChatTarget, from int64, command string) *Request {
	rid := uuid.NewString()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: command,
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", from),
			logx.String("cmd", command),
		),
	}
}

func (m *Router) chain(h HandlerFunc, timeout time.Duration) HandlerFunc {
	if timeout <= 0 {
		timeout = m.timeout
	}
	return Chain(h,
		MWPanicRecover(m.log),
		MWMetrics(),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)
}
