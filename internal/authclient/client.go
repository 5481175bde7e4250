// authclient — аутентифицированный HTTP-клиент к REST API админки.
//
// Клиент:
//   - подставляет Authorization: Bearer <access> и заранее обновляет токен,
//     если до истечения осталось меньше RefreshLookahead;
//   - на 401 с кодом «сессия невалидна» обновляет токен один раз на волну,
//     ставит в очередь все запросы, пришедшие во время обновления, и повторяет их;
//   - при неудачном обновлении очищает сессию, отклоняет очередь и один раз
//     уведомляет об истечении сессии.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apperrors "github.com/pribylovaa/kiosk-admin/internal/errors"
	"github.com/pribylovaa/kiosk-admin/internal/events"
	"github.com/pribylovaa/kiosk-admin/internal/models"
	"github.com/pribylovaa/kiosk-admin/internal/notify"
	"github.com/pribylovaa/kiosk-admin/internal/pkg/redact"
	"github.com/pribylovaa/kiosk-admin/internal/session"
)

const (
	DefaultLoginPath        = "/auth/login"
	DefaultRefreshPath      = "/auth/refresh"
	DefaultLogoutPath       = "/auth/logout"
	DefaultTimeout          = 5 * time.Minute
	DefaultRefreshLookahead = 120 * time.Second
	DefaultExpiredDelay     = 1500 * time.Millisecond
)

// EventPublisher принимает события жизненного цикла сессии.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Options — зависимости и параметры клиента. Обязательны BaseURL и Store.
type Options struct {
	BaseURL     string
	LoginPath   string
	RefreshPath string
	LogoutPath  string

	Store     session.Store
	Refresher Refresher
	Notifier  notify.Notifier
	Events    EventPublisher
	Logger    *slog.Logger
	Metrics   *Metrics

	// Transport — базовый транспорт; по умолчанию otelhttp поверх http.DefaultTransport.
	Transport http.RoundTripper
	UserAgent string

	// Timeout — общий таймаут запроса без собственного дедлайна, включая refresh.
	Timeout time.Duration
	// RefreshLookahead — окно проактивного refresh; < 0 отключает его.
	RefreshLookahead time.Duration
	// ExpiredDelay — задержка перед вызовом хука истечения сессии.
	ExpiredDelay time.Duration
	Retry        RetryPolicy

	// Profile — имя сессии в событиях.
	Profile string
	// DisableFailureNotifications отключает общие уведомления об ошибках запросов.
	DisableFailureNotifications bool

	Now func() time.Time
}

// Client — аутентифицированный клиент. Безопасен для конкурентного использования.
type Client struct {
	base      string
	loginURL  string
	loginPath string
	logoutURL string

	rt        http.RoundTripper
	store     session.Store
	refresher Refresher
	notifier  notify.Notifier
	events    EventPublisher
	log       *slog.Logger
	metrics   *Metrics

	timeout        time.Duration
	lookahead      time.Duration
	expiredDelay   time.Duration
	retry          RetryPolicy
	profile        string
	notifyFailures bool
	now            func() time.Time

	coord coordinator

	hookMu       sync.Mutex
	onExpired    func()
	expiredTimer *time.Timer
}

// New собирает клиент. Транспортная цепочка: metadata -> timeout -> logging -> metrics -> base.
func New(opts Options) (*Client, error) {
	const op = "authclient.New"

	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%s: empty base url", op)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%s: base url: %w", op, err)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%s: nil store", op)
	}

	c := &Client{
		base:           opts.BaseURL,
		store:          opts.Store,
		notifier:       opts.Notifier,
		events:         opts.Events,
		log:            opts.Logger,
		metrics:        opts.Metrics,
		timeout:        opts.Timeout,
		lookahead:      opts.RefreshLookahead,
		expiredDelay:   opts.ExpiredDelay,
		retry:          opts.Retry,
		profile:        opts.Profile,
		notifyFailures: !opts.DisableFailureNotifications,
		now:            opts.Now,
	}

	if c.notifier == nil {
		c.notifier = notify.Nop
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.lookahead == 0 {
		c.lookahead = DefaultRefreshLookahead
	}
	if c.expiredDelay <= 0 {
		c.expiredDelay = DefaultExpiredDelay
	}
	if len(c.retry.Codes) == 0 && len(c.retry.MessageContains) == 0 {
		c.retry.Codes = DefaultRetryCodes
	}
	if c.profile == "" {
		c.profile = "default"
	}
	if c.now == nil {
		c.now = time.Now
	}

	loginPath := orDefault(opts.LoginPath, DefaultLoginPath)
	c.loginURL = joinURL(c.base, loginPath)
	c.logoutURL = joinURL(c.base, orDefault(opts.LogoutPath, DefaultLogoutPath))
	if u, err := url.Parse(c.loginURL); err == nil {
		c.loginPath = u.Path
	}

	base := opts.Transport
	if base == nil {
		base = otelhttp.NewTransport(http.DefaultTransport)
	}

	c.rt = Chain(base,
		WithMetadata(opts.UserAgent),
		WithTimeout(c.timeout),
		WithLogging(c.log),
		WithMetrics(c.metrics),
	)

	c.refresher = opts.Refresher
	if c.refresher == nil {
		c.refresher = NewHTTPRefresher(c.base, orDefault(opts.RefreshPath, DefaultRefreshPath), c.rt)
	}

	return c, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// OnSessionExpired задаёт хук, вызываемый через ExpiredDelay после завершения
// сессии (аналог перехода на экран логина).
func (c *Client) OnSessionExpired(fn func()) {
	c.hookMu.Lock()
	c.onExpired = fn
	c.hookMu.Unlock()
}

// Close останавливает отложенный хук истечения сессии.
func (c *Client) Close() {
	c.stopExpiredTimer()
}

// Do отправляет запрос с токеном сессии.
//
// Не-2xx ответы возвращаются как ошибка (*ResponseError в цепочке), тело
// при этом уже прочитано и закрыто. При успехе тело закрывает вызывающий.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	const op = "authclient.Client.Do"

	ctx := req.Context()

	body, err := bodyFactory(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := c.authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.send(req, token, body)
	if err != nil {
		c.notifyFailure(ctx, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	rerr := readResponseError(resp)

	// 401 от логина — это неверные учётные данные, а не истёкшая сессия.
	if rerr.Status == http.StatusUnauthorized && c.isLogin(req.URL) {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCredentials, rerr)
	}

	if c.retry.retryable(rerr) && !IsRetried(ctx) {
		return c.retryAfterRefresh(req, token, body, rerr)
	}

	c.notifyFailure(ctx, rerr)
	return nil, fmt.Errorf("%s: %w", op, rerr)
}

// retryAfterRefresh — post-flight: обновить токен (или взять уже обновлённый)
// и повторить запрос один раз.
func (c *Client) retryAfterRefresh(req *http.Request, used string, body func() (io.ReadCloser, error), cause *ResponseError) (*http.Response, error) {
	const op = "authclient.Client.Do"

	ctx := req.Context()

	pair, ok, err := c.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var token string
	switch {
	case ok && pair.AccessToken != "" && pair.AccessToken != used:
		// Волна уже завершилась, пока запрос был в полёте.
		token = pair.AccessToken
		c.log.Debug("stale_token_replay", slog.String("op", op))
	case !ok || pair.RefreshToken == "":
		return nil, fmt.Errorf("%s: %w: %w", op, ErrSessionInvalid, cause)
	default:
		token, err = c.refresh(ctx, used, true)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	retryReq := req.WithContext(WithRetried(ctx))

	resp, err := c.send(retryReq, token, body)
	if err != nil {
		c.notifyFailure(ctx, err)
		return nil, fmt.Errorf("%s: retry: %w", op, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		rerr := readResponseError(resp)
		c.notifyFailure(ctx, rerr)
		return nil, fmt.Errorf("%s: retry: %w", op, rerr)
	}

	return resp, nil
}

// authorize — pre-flight: текущий access-токен, при необходимости проактивно обновлённый.
// Неудача проактивного обновления не прерывает запрос и не завершает сессию.
func (c *Client) authorize(ctx context.Context) (string, error) {
	pair, ok, err := c.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	if c.lookahead > 0 && pair.RefreshToken != "" && pair.ExpiresWithin(c.now(), c.lookahead) {
		tok, err := c.refresh(ctx, pair.AccessToken, false)
		if err != nil {
			c.log.Warn("proactive_refresh_failed",
				slog.String("op", "authclient.Client.authorize"),
				slog.Time("expires_at", pair.AccessExpiresAt),
				slog.String("err", err.Error()),
			)
			return pair.AccessToken, nil
		}
		return tok, nil
	}

	return pair.AccessToken, nil
}

// refresh присоединяет вызывающего к волне обновления: лидер выполняет
// refresh, остальные ждут его результата или отмены своего ctx.
// used — access-токен, с которым работал вызывающий. hard — вызов после
// 401 апстрима: неудача такой волны завершает сессию, неудача чисто
// проактивной волны только логируется.
func (c *Client) refresh(ctx context.Context, used string, hard bool) (string, error) {
	const op = "authclient.Client.refresh"

	d, leader := c.coord.join(hard)
	if !leader {
		c.metrics.queuedInc()
		c.log.Debug("refresh_queued")

		select {
		case r := <-d:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	r := result{err: ErrRefreshFailed}
	finished := false
	defer func() {
		if !finished {
			c.coord.finish(r)
		}
	}()

	next, fresh, err := c.runRefresh(ctx, used)
	if err != nil {
		r.err = fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
	} else {
		r = result{token: next.AccessToken}
	}

	// Очередь освобождается до публикации и уведомлений.
	_, terminal := c.coord.finish(r)
	finished = true

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	switch {
	case err != nil:
		c.metrics.refresh("failure")
		c.log.Warn("refresh_failed",
			slog.String("op", op),
			slog.Bool("terminal", terminal),
			slog.String("err", err.Error()),
		)
		if terminal {
			c.terminate(sctx)
		}
	case fresh:
		c.metrics.refresh("success")
		c.publish(sctx, events.KindRefreshed)
	}

	return r.token, r.err
}

// runRefresh выполняется только лидером волны. Отмена ctx вызывающего не
// прерывает обновление: от него зависят все ожидающие. fresh == false —
// пару уже обновила предыдущая волна, refresher не вызывался.
func (c *Client) runRefresh(ctx context.Context, used string) (next models.TokenPair, fresh bool, err error) {
	const op = "authclient.Client.refresh"

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	pair, ok, err := c.store.Get(rctx)
	switch {
	case err != nil:
		return models.TokenPair{}, false, err
	case !ok || pair.RefreshToken == "":
		return models.TokenPair{}, false, ErrNoSession
	case pair.AccessToken != "" && pair.AccessToken != used:
		c.log.Debug("refresh_skipped", slog.String("op", op))
		return pair, false, nil
	}

	start := time.Now()
	c.log.Info("refresh_started", slog.String("op", op))

	next, err = c.refresher.Refresh(rctx, pair.RefreshToken)
	if err != nil {
		return models.TokenPair{}, false, err
	}
	if next.AccessToken == "" {
		return models.TokenPair{}, false, errEmptyAccessToken
	}
	if err := c.store.Set(rctx, next); err != nil {
		return models.TokenPair{}, false, err
	}

	c.coord.rearm()
	c.log.Info("refresh_succeeded",
		slog.String("op", op),
		slog.String("access_token", redact.TokenTail(next.AccessToken)),
		slog.Time("expires_at", next.AccessExpiresAt),
		slog.Duration("dur", time.Since(start)),
	)

	return next, true, nil
}

// terminate завершает сессию после неудачного обновления.
func (c *Client) terminate(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Error("session_clear_failed", slog.String("err", err.Error()))
	}

	c.expire(ctx)
}

// expire публикует событие и уведомляет об истечении сессии не более одного
// раза до следующего успешного логина или refresh.
func (c *Client) expire(ctx context.Context) {
	if !c.coord.markExpired() {
		return
	}

	c.publish(ctx, events.KindExpired)
	c.notify(ctx, "session_expired", notify.Notification{
		Title:       "Session expired",
		Description: "Your session has expired. Please log in again.",
		Severity:    notify.SeverityError,
	})

	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	if c.onExpired == nil {
		return
	}
	if c.expiredTimer != nil {
		c.expiredTimer.Stop()
	}
	c.expiredTimer = time.AfterFunc(c.expiredDelay, c.onExpired)
}

func (c *Client) stopExpiredTimer() {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	if c.expiredTimer != nil {
		c.expiredTimer.Stop()
		c.expiredTimer = nil
	}
}

// Login выполняет вход и сохраняет пару токенов. 401 -> ErrInvalidCredentials
// без какого-либо refresh.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	const op = "authclient.Client.Login"

	var out models.AuthResponse
	err := postJSON(ctx, c.rt, c.loginURL, "", models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		var re *ResponseError
		if errors.As(err, &re) && re.Status == http.StatusUnauthorized {
			c.log.Info("login_rejected", slog.String("email", redact.Email(email)))
			return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidCredentials, re)
		}

		c.notifyFailure(ctx, err)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	pair := pairFromAuth(out, "")
	if pair.AccessToken == "" {
		return "", fmt.Errorf("%s: %w", op, errEmptyAccessToken)
	}

	if err := c.store.Set(ctx, pair); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	c.coord.rearm()
	c.stopExpiredTimer()
	c.publishUser(ctx, events.KindLoggedIn, out.UserID)
	c.log.Info("login_succeeded",
		slog.String("email", redact.Email(email)),
		slog.Time("expires_at", pair.AccessExpiresAt),
	)

	return out.UserID, nil
}

// Logout отзывает refresh-токен на сервере и очищает локальную сессию.
// Локальная сессия очищается даже при ошибке вызова.
func (c *Client) Logout(ctx context.Context) error {
	const op = "authclient.Client.Logout"

	pair, ok, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var callErr error
	if ok && pair.RefreshToken != "" {
		callErr = postJSON(ctx, c.rt, c.logoutURL, pair.AccessToken, models.LogoutRequest{RefreshToken: pair.RefreshToken}, nil)
		if callErr != nil {
			c.log.Warn("logout_call_failed", slog.String("err", callErr.Error()))
		}
	}

	clearErr := c.store.Clear(ctx)
	c.stopExpiredTimer()
	c.publish(ctx, events.KindLoggedOut)
	c.log.Info("logout")

	if err := errors.Join(callErr, clearErr); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AccessToken возвращает действующий access-токен (с проактивным refresh).
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	const op = "authclient.Client.AccessToken"

	tok, err := c.authorize(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if tok == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	return tok, nil
}

// Status — состояние сессии для BFF.
type Status struct {
	Authenticated   bool      `json:"authenticated"`
	AccessExpiresAt time.Time `json:"access_expires_at,omitempty"`
	Refreshing      bool      `json:"refreshing"`
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	const op = "authclient.Client.Status"

	pair, ok, err := c.store.Get(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("%s: %w", op, err)
	}

	return Status{
		Authenticated:   ok,
		AccessExpiresAt: pair.AccessExpiresAt,
		Refreshing:      c.coord.Refreshing(),
	}, nil
}

// DoJSON — JSON-запрос к пути относительно BaseURL. in == nil — без тела,
// out == nil — тело ответа отбрасывается.
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := joinURL(c.base, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("authclient.Client.DoJSON: marshal: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("authclient.Client.DoJSON: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("authclient.Client.DoJSON: decode: %w", err)
	}

	return nil
}

// send отправляет копию запроса со свежим телом и нужным Authorization.
func (c *Client) send(req *http.Request, token string, body func() (io.ReadCloser, error)) (*http.Response, error) {
	r := req.Clone(req.Context())

	if body != nil {
		rc, err := body()
		if err != nil {
			return nil, err
		}
		r.Body = rc
		r.GetBody = body
	}

	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	} else {
		r.Header.Del("Authorization")
	}

	return c.rt.RoundTrip(r)
}

func (c *Client) isLogin(u *url.URL) bool {
	return u != nil && c.loginPath != "" && u.Path == c.loginPath
}

// bodyFactory готовит тело запроса к повторной отправке.
func bodyFactory(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}

	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}, nil
}

func (c *Client) notifyFailure(ctx context.Context, err error) {
	if !c.notifyFailures || errors.Is(err, context.Canceled) {
		return
	}

	title, desc := apperrors.Describe(err)
	c.notify(ctx, "request_failed", notify.Notification{
		Title:       title,
		Description: desc,
		Severity:    notify.SeverityError,
	})
}

func (c *Client) notify(ctx context.Context, kind string, n notify.Notification) {
	c.metrics.notified(kind)
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.log.Warn("notify_failed", slog.String("kind", kind), slog.String("err", err.Error()))
	}
}

func (c *Client) publish(ctx context.Context, kind events.Kind) {
	c.publishUser(ctx, kind, "")
}

func (c *Client) publishUser(ctx context.Context, kind events.Kind, userID string) {
	if c.events == nil {
		return
	}

	ev := events.Event{Kind: kind, Profile: c.profile, UserID: userID, At: c.now().UTC()}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn("session_event_publish_failed", slog.String("kind", string(kind)), slog.String("err", err.Error()))
	}
}
