package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/productgenius/internal/catalog"
	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/service"
	"github.com/digkill/productgenius/internal/session"
)

const historyPreview = 5

var errNotImage = errors.New("file is not an image")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api        *tgbotapi.BotAPI
	out        sender
	log        *slog.Logger
	accounts   *service.AccountService
	generation *service.GenerationService
	purchases  *service.PurchaseService
	sessions   session.Cache
	histories  *session.Histories
	state      *StateManager
	httpClient *http.Client

	// download fetches a Telegram file by id.
	download func(ctx context.Context, fileID string) ([]byte, error)
	// spawn runs a generation off the update loop.
	spawn func(func())

	chatsMu sync.Mutex
	chats   map[string]int64
}

func NewBot(api *tgbotapi.BotAPI, log *slog.Logger, accounts *service.AccountService, generation *service.GenerationService, purchases *service.PurchaseService, sessions session.Cache, histories *session.Histories) *Bot {
	b := newBot(api, log, accounts, generation, purchases, sessions, histories)
	b.api = api
	b.download = b.downloadFile
	return b
}

func newBot(out sender, log *slog.Logger, accounts *service.AccountService, generation *service.GenerationService, purchases *service.PurchaseService, sessions session.Cache, histories *session.Histories) *Bot {
	return &Bot{
		out:        out,
		log:        log,
		accounts:   accounts,
		generation: generation,
		purchases:  purchases,
		sessions:   sessions,
		histories:  histories,
		state:      NewStateManager(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		spawn:      func(f func()) { go f() },
		chats:      make(map[string]int64),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

// NotifyUser sends text to the chat the user last logged in from.
func (b *Bot) NotifyUser(_ context.Context, userID, text string) error {
	b.chatsMu.Lock()
	chatID, ok := b.chats[userID]
	b.chatsMu.Unlock()
	if !ok {
		return nil
	}
	if _, err := b.out.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	state := b.state.Get(msg.Chat.ID)
	switch {
	case state.State == StateAwaitingPhoto && (len(msg.Photo) > 0 || msg.Document != nil):
		b.handlePhoto(ctx, msg)
	case state.State == StateAwaitingPhoto:
		b.sendText(msg.Chat.ID, "Send a photo of your product.")
	case state.State == StateAwaitingPrompt:
		b.handlePrompt(ctx, msg)
	case state.State != StateIdle:
		b.sendText(msg.Chat.ID, "Pick an option from the buttons above, or /cancel.")
	default:
		b.sendText(msg.Chat.ID, "Use /generate to create a product visual, or /help for all commands.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.sendText(chatID, helpText)
	case "register":
		b.handleRegister(ctx, msg)
	case "login":
		b.handleLogin(ctx, msg)
	case "logout":
		if err := b.sessions.Delete(ctx, chatKey(chatID)); err != nil {
			b.log.Error("delete session", "err", err)
		}
		b.histories.Drop(chatKey(chatID))
		b.state.Reset(chatID)
		b.sendText(chatID, "Logged out.")
	case "balance":
		b.handleBalance(ctx, chatID)
	case "packages":
		b.sendText(chatID, packagesText())
	case "buy":
		b.handleBuy(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))
	case "generate":
		b.startWizard(ctx, chatID)
	case "history":
		b.handleHistory(chatID)
	case "cancel":
		b.state.Reset(chatID)
		b.sendText(chatID, "Cancelled.")
	default:
		b.sendText(chatID, "Unknown command. Use /help.")
	}
}

func (b *Bot) handleRegister(ctx context.Context, msg *tgbotapi.Message) {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) < 3 {
		b.sendText(msg.Chat.ID, "Usage: /register <email> <password> <business name>")
		return
	}
	user, err := b.accounts.Register(ctx, fields[0], strings.Join(fields[2:], " "), fields[1])
	if err != nil {
		b.replyError(msg.Chat.ID, "register", err)
		return
	}
	b.openSession(ctx, msg.Chat.ID, models.BusinessPrincipal{User: *user})
	b.sendText(msg.Chat.ID, fmt.Sprintf("Welcome, %s! Your free trial has %d credit valid until %s. Use /generate to start.",
		user.BusinessName, user.Credits, user.ExpiresAt.Format("2006-01-02")))
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		b.sendText(msg.Chat.ID, "Usage: /login <email> <password>")
		return
	}
	principal, err := b.accounts.Login(ctx, fields[0], fields[1])
	if err != nil {
		b.replyError(msg.Chat.ID, "login", err)
		return
	}
	b.openSession(ctx, msg.Chat.ID, principal)
	b.sendText(msg.Chat.ID, fmt.Sprintf("Logged in as %s.", principal.DisplayName()))
}

func (b *Bot) openSession(ctx context.Context, chatID int64, principal models.Principal) {
	if err := b.sessions.Set(ctx, chatKey(chatID), session.EntryFor(principal, time.Now().UTC())); err != nil {
		b.log.Error("store session", "err", err)
	}
	if bp, ok := principal.(models.BusinessPrincipal); ok {
		b.chatsMu.Lock()
		b.chats[bp.User.ID] = chatID
		b.chatsMu.Unlock()
	}
}

// principal resolves the chat's session and refreshes business records from the store.
func (b *Bot) principal(ctx context.Context, chatID int64) (models.Principal, bool) {
	entry, err := b.sessions.Get(ctx, chatKey(chatID))
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			b.log.Error("load session", "err", err)
		}
		b.sendText(chatID, "Please /login or /register first.")
		return nil, false
	}
	if entry.Admin {
		return models.AdminPrincipal{Email: entry.Email}, true
	}

	fresh, err := b.accounts.Refresh(ctx, models.BusinessPrincipal{User: models.User{ID: entry.UserID}})
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			_ = b.sessions.Delete(ctx, chatKey(chatID))
		}
		b.replyError(chatID, "refresh session", err)
		return nil, false
	}
	b.openSession(ctx, chatID, fresh)
	return fresh, true
}

func (b *Bot) handleBalance(ctx context.Context, chatID int64) {
	principal, ok := b.principal(ctx, chatID)
	if !ok {
		return
	}
	bp, isBusiness := principal.(models.BusinessPrincipal)
	if !isBusiness {
		b.sendText(chatID, "Administrator account: unlimited credits, no expiry.")
		return
	}
	b.sendText(chatID, balanceText(bp.User, time.Now()))
}

func (b *Bot) handleBuy(ctx context.Context, chatID int64, arg string) {
	principal, ok := b.principal(ctx, chatID)
	if !ok {
		return
	}
	bp, isBusiness := principal.(models.BusinessPrincipal)
	if !isBusiness {
		b.sendText(chatID, "The administrator account does not need packages.")
		return
	}
	if arg == "" {
		b.sendKeyboard(chatID, "Choose a package:", packageKeyboard())
		return
	}
	b.submitPurchase(ctx, chatID, bp.User.ID, models.PackageCode(strings.ToLower(arg)))
}

func (b *Bot) submitPurchase(ctx context.Context, chatID int64, userID string, pkg models.PackageCode) {
	if _, err := b.purchases.Submit(ctx, userID, pkg); err != nil {
		b.replyError(chatID, "submit purchase", err)
		return
	}
	b.sendText(chatID, fmt.Sprintf("Request for %s submitted. Your credits will be updated once an administrator confirms the payment.", pkg))
}

func (b *Bot) startWizard(ctx context.Context, chatID int64) {
	if _, ok := b.principal(ctx, chatID); !ok {
		return
	}
	if b.state.Get(chatID).Generating {
		b.sendText(chatID, "A generation is already running. Please wait for it to finish.")
		return
	}
	b.state.Update(chatID, func(s *Session) {
		*s = Session{State: StateAwaitingBusiness, Generating: s.Generating}
	})
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(models.BusinessTypes))
	for _, bt := range models.BusinessTypes {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(string(bt), "biz:"+string(bt)))
	}
	b.sendKeyboard(chatID, "What do you sell?", gridKeyboard(buttons, 3))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	kind, value, _ := strings.Cut(cb.Data, ":")
	ack := "OK"

	switch kind {
	case "biz":
		b.state.Update(chatID, func(s *Session) {
			s.Business = models.BusinessType(value)
			s.State = StateAwaitingStyle
		})
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(models.SceneStyles))
		for _, st := range models.SceneStyles {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(string(st), "style:"+string(st)))
		}
		b.sendKeyboard(chatID, "Pick a scene style:", gridKeyboard(buttons, 3))
	case "style":
		b.state.Update(chatID, func(s *Session) {
			s.Style = models.SceneStyle(value)
			s.State = StateAwaitingQuality
		})
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(models.Qualities))
		for _, q := range models.Qualities {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(string(q), "quality:"+string(q)))
		}
		b.sendKeyboard(chatID, "Pick an output quality:", gridKeyboard(buttons, 3))
	case "quality":
		b.state.Update(chatID, func(s *Session) {
			s.Quality = models.Quality(value)
			s.State = StateAwaitingPhoto
		})
		b.sendText(chatID, "Now send a photo of your product.")
	case "buy":
		principal, ok := b.principal(ctx, chatID)
		if !ok {
			break
		}
		if bp, isBusiness := principal.(models.BusinessPrincipal); isBusiness {
			b.submitPurchase(ctx, chatID, bp.User.ID, models.PackageCode(value))
		}
	default:
		ack = "Unknown option"
	}

	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, ack)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	var fileID string
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil:
		if mt := strings.ToLower(msg.Document.MimeType); mt != "" && !strings.HasPrefix(mt, "image/") {
			b.sendText(msg.Chat.ID, "That file is not an image. Send a JPEG, PNG or WebP photo.")
			return
		}
		fileID = msg.Document.FileID
	}

	data, err := b.download(ctx, fileID)
	if err != nil {
		if errors.Is(err, errNotImage) {
			b.sendText(msg.Chat.ID, "That file is not an image. Send a JPEG, PNG or WebP photo.")
			return
		}
		b.log.Error("download photo", "err", err)
		b.sendText(msg.Chat.ID, "Could not download the photo, please try again.")
		return
	}

	b.state.Update(msg.Chat.ID, func(s *Session) {
		s.Photo = data
		s.State = StateAwaitingPrompt
	})
	b.sendText(msg.Chat.ID, "Any extra details for the scene? Reply with text, or - to skip.")
}

func (b *Bot) handlePrompt(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	principal, ok := b.principal(ctx, chatID)
	if !ok {
		return
	}
	if !b.state.BeginGeneration(chatID) {
		b.sendText(chatID, "A generation is already running. Please wait for it to finish.")
		return
	}

	wizard := b.state.Get(chatID)
	prompt := strings.TrimSpace(msg.Text)
	if prompt == "-" {
		prompt = ""
	}
	req := service.GenerationRequest{
		SourceImage:  wizard.Photo,
		BusinessType: wizard.Business,
		SceneStyle:   wizard.Style,
		Quality:      wizard.Quality,
		Prompt:       prompt,
	}
	b.state.Reset(chatID)

	// Bound to this session's log; after /logout the result lands in the dropped log.
	results := b.histories.For(chatKey(chatID))
	b.sendText(chatID, "Generating your visual, this can take up to a couple of minutes.")
	b.spawn(func() {
		defer b.state.EndGeneration(chatID)
		b.runGeneration(ctx, chatID, principal, results, req)
	})
}

func (b *Bot) runGeneration(ctx context.Context, chatID int64, principal models.Principal, results *session.History, req service.GenerationRequest) {
	result, err := b.generation.Generate(ctx, principal, results, req)
	if err != nil {
		b.replyError(chatID, "generate", err)
		return
	}

	caption := fmt.Sprintf("%s · %s · %s", result.BusinessType, result.SceneStyle, result.Quality)
	if fresh, err := b.accounts.Refresh(ctx, principal); err == nil {
		if bp, ok := fresh.(models.BusinessPrincipal); ok {
			caption += fmt.Sprintf("\nCredits left: %d", bp.User.Credits)
		}
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  result.ID + extensionFor(result.ResultMime),
		Bytes: result.ResultImage,
	})
	photo.Caption = caption
	if _, err := b.out.Send(photo); err != nil {
		b.log.Error("send image", "err", err)
	}
}

func (b *Bot) handleHistory(chatID int64) {
	results := b.histories.For(chatKey(chatID)).List()
	if len(results) == 0 {
		b.sendText(chatID, "No generations in this session yet.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent generations (%d total):\n", len(results))
	for i, r := range results {
		if i == historyPreview {
			break
		}
		fmt.Fprintf(&sb, "%d. %s · %s · %s: %s", i+1, r.CreatedAt.Format("2006-01-02 15:04"), r.BusinessType, r.SceneStyle, r.Prompt)
		if r.ResultURL != "" {
			fmt.Fprintf(&sb, " %s", r.ResultURL)
		}
		sb.WriteString("\n")
	}
	b.sendText(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) replyError(chatID int64, op string, err error) {
	text, expected := userMessage(err)
	if !expected {
		b.log.Error(op+" failed", "chat_id", chatID, "err", err)
	}
	b.sendText(chatID, text)
}

// userMessage maps service errors to chat replies. expected is false for errors worth logging.
func userMessage(err error) (text string, expected bool) {
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		return "You have no credits left. Use /buy to request a package.", true
	case errors.Is(err, service.ErrPlanExpired):
		return "Your plan has expired. Use /buy to request a new package.", true
	case errors.Is(err, service.ErrGenerationInProgress):
		return "A generation is already running. Please wait for it to finish.", true
	case errors.Is(err, service.ErrDuplicateEmail):
		return "This email is already registered. Use /login instead.", true
	case errors.Is(err, service.ErrAccountNotFound):
		return "Account not found. Use /register to create one.", true
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Wrong email or password.", true
	case errors.Is(err, service.ErrAlreadyPending):
		return "You already have a purchase request waiting for approval.", true
	case errors.Is(err, service.ErrInvalidPackage):
		return "Unknown package. See /packages.", true
	case errors.Is(err, service.ErrInvalidInput):
		return "Please check your input (" + err.Error() + ").", true
	case errors.Is(err, service.ErrGeneratorAuth):
		return "The image service rejected our credentials. Please contact the administrator. No credit was used.", false
	case errors.Is(err, service.ErrNoImageReturned):
		return "The model did not return an image. Try a different photo or prompt. No credit was used.", true
	case errors.Is(err, service.ErrTimeout):
		return "The image service took too long. Please try again. No credit was used.", false
	case errors.Is(err, service.ErrGeneratorTransport):
		return "Generation failed: " + err.Error() + ". No credit was used.", false
	default:
		return "Something went wrong, please try again later.", false
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.out.Send(msg); err != nil {
		b.log.Error("send text", "err", err)
	}
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.out.Send(msg); err != nil {
		b.log.Error("send keyboard", "err", err)
	}
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, errors.New("file path empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram file status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	if _, err := normalizeImageContentType(resp.Header.Get("Content-Type"), body); err != nil {
		return nil, err
	}
	return body, nil
}

func normalizeImageContentType(headerCT string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(headerCT))
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = ct[:idx]
	}
	if ct == "" || ct == "application/octet-stream" || !strings.HasPrefix(ct, "image/") {
		if len(data) > 0 {
			ct = http.DetectContentType(data)
			if idx := strings.Index(ct, ";"); idx > 0 {
				ct = ct[:idx]
			}
		}
	}

	switch ct {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", nil
	case "image/png":
		return "image/png", nil
	case "image/webp":
		return "image/webp", nil
	default:
		return "", errNotImage
	}
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func gridKeyboard(buttons []tgbotapi.InlineKeyboardButton, perRow int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for start := 0; start < len(buttons); start += perRow {
		end := min(start+perRow, len(buttons))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons[start:end]...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func packageKeyboard() tgbotapi.InlineKeyboardMarkup {
	var buttons []tgbotapi.InlineKeyboardButton
	for _, def := range catalog.Purchasable() {
		label := fmt.Sprintf("%s: %d credits", def.Title, def.Credits)
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, "buy:"+string(def.Code)))
	}
	return gridKeyboard(buttons, 1)
}

func packagesText() string {
	var sb strings.Builder
	sb.WriteString("Packages:\n")
	for _, def := range catalog.Purchasable() {
		fmt.Fprintf(&sb, "%s (%s): %d credits, valid %d days\n", def.Title, def.Code, def.Credits, int(def.Validity/(24*time.Hour)))
	}
	sb.WriteString("Request one with /buy <code>.")
	return sb.String()
}

func balanceText(u models.User, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s\nCredits: %d\n", u.Package, u.Credits)
	switch {
	case u.ExpiresAt == nil:
		sb.WriteString("Expires: never\n")
	case u.Expired(now):
		fmt.Fprintf(&sb, "Expired on %s\n", u.ExpiresAt.Format("2006-01-02"))
	default:
		fmt.Fprintf(&sb, "Valid until %s\n", u.ExpiresAt.Format("2006-01-02"))
	}
	if u.PaymentPending && u.RequestedPackage != nil {
		fmt.Fprintf(&sb, "Pending request: %s", *u.RequestedPackage)
	}
	return strings.TrimRight(sb.String(), "\n")
}

const helpText = `ProductGenius turns a product photo into a studio-grade visual.

/register <email> <password> <business name> - create an account (1 free credit, 7 days)
/login <email> <password> - sign in
/logout - sign out
/balance - credits and plan
/packages - available packages
/buy <code> - request a package
/generate - create a visual
/history - generations from this session
/cancel - abort the current step`
