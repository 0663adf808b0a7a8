package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"

	"research-scheduler/internal/model"
	"research-scheduler/internal/repository"
	"research-scheduler/internal/service"
	"research-scheduler/internal/store"
)

const (
	cbTogglePrefix   = "toggle:"
	cbEditPrefix     = "edit:"
	cbDeletePrefix   = "delete:"
	cbCalendarPrefix = "cal:"
)

const sendFailedNotice = "⚠️ Impossibile mostrare il messaggio. Restringi la ricerca o riprova più tardi."

const (
	menuLabelDashboard = "📊 Dashboard"
	menuLabelCalendar  = "📅 Calendario"
	menuLabelList      = "📋 Attività"
	menuLabelNew       = "➕ Nuova attività"
	menuLabelEmail     = "✉️ Email"
	menuLabelHelp      = "ℹ️ Aiuto"
)

// botAPI is the part of the Telegram client the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services are the collaborators the bot renders and mutates.
type Services struct {
	Users      *repository.UserRepository
	Activities *repository.ActivityRepository
	Settings   *repository.SettingsRepository
	Clock      clock.Clock
	Location   *time.Location
}

type confirmationRequest struct {
	activityID int64
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           botAPI
	users         *repository.UserRepository
	activities    *repository.ActivityRepository
	settings      *repository.SettingsRepository
	clock         clock.Clock
	loc           *time.Location
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return newBot(api, svc), nil
}

func newBot(api botAPI, svc Services) *Bot {
	if svc.Clock == nil {
		svc.Clock = clock.New()
	}
	if svc.Location == nil {
		svc.Location = time.Local
	}
	return &Bot{
		api:           api,
		users:         svc.Users,
		activities:    svc.Activities,
		settings:      svc.Settings,
		clock:         svc.Clock,
		loc:           svc.Location,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Operazione annullata.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		log.Printf("[info] conversation step %d from %d", state.stage, msg.From.ID)
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "Non ho capito il messaggio. Usa /nuova per aggiungere un'attività o /help per i comandi.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help", "aiuto":
		return b.sendText(msg.Chat.ID, helpText)
	case "dashboard":
		return b.sendDashboard(msg.Chat.ID)
	case "calendario":
		return b.handleCalendar(msg.Chat.ID, args)
	case "attivita":
		return b.sendList(msg.Chat.ID, parseFilter(args))
	case "nuova":
		return b.startActivityForm(msg.Chat.ID, msg.From.ID, 0)
	case "modifica":
		id, err := parseID(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Indica l'ID dell'attività: /modifica 1729324800000")
		}
		return b.startActivityForm(msg.Chat.ID, msg.From.ID, id)
	case "elimina":
		id, err := parseID(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Indica l'ID dell'attività: /elimina 1729324800000")
		}
		return b.askDeleteConfirmation(msg.Chat.ID, msg.From.ID, id)
	case "stato":
		id, err := parseID(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Indica l'ID dell'attività: /stato 1729324800000")
		}
		return b.toggleAndReport(ctx, msg.Chat.ID, id)
	case "email":
		return b.startEmailForm(msg.Chat.ID, msg.From.ID)
	case "notifiche":
		return b.handleMute(ctx, msg, args)
	case "aggiorna":
		b.syncing(msg.Chat.ID)
		if !b.activities.Refresh(ctx) {
			return b.sendText(msg.Chat.ID, "⚠️ Impossibile leggere i dati condivisi. Restano visibili gli ultimi dati caricati.")
		}
		b.settings.Refresh(ctx)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🔄 Dati aggiornati: %d attività.", len(b.activities.List())))
	case "annulla", "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Operazione annullata.")
	default:
		return b.sendText(msg.Chat.ID, "Comando non supportato. Consulta /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "collega"
	}
	text := fmt.Sprintf("👋 Ciao, %s!\n<b>Scadenziario digitale dell'Ufficio Ricerca.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelDashboard):
		return true, b.sendDashboard(msg.Chat.ID)
	case strings.ToLower(menuLabelCalendar):
		return true, b.handleCalendar(msg.Chat.ID, "")
	case strings.ToLower(menuLabelList):
		return true, b.sendList(msg.Chat.ID, service.Filter{})
	case strings.ToLower(menuLabelNew):
		return true, b.startActivityForm(msg.Chat.ID, msg.From.ID, 0)
	case strings.ToLower(menuLabelEmail):
		return true, b.startEmailForm(msg.Chat.ID, msg.From.ID)
	case strings.ToLower(menuLabelHelp):
		return true, b.sendText(msg.Chat.ID, helpText)
	default:
		return false, nil
	}
}

func (b *Bot) handleMute(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	var muted bool
	switch strings.ToLower(args) {
	case "off", "no":
		muted = true
	case "on", "si", "sì", "":
		muted = false
	default:
		return b.sendText(msg.Chat.ID, "Uso: /notifiche on oppure /notifiche off")
	}
	if err := b.users.SetMuted(ctx, msg.From.ID, muted); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Errore: %s", escape(err.Error())))
	}
	if muted {
		return b.sendText(msg.Chat.ID, "🔕 Notifiche disattivate per questa chat.")
	}
	return b.sendText(msg.Chat.ID, "🔔 Notifiche attive per questa chat.")
}

func (b *Bot) handleCalendar(chatID int64, args string) error {
	now := b.now()
	year, month := now.Year(), now.Month()
	if args != "" {
		t, err := time.ParseInLocation("2006-01", args, b.loc)
		if err != nil {
			return b.sendText(chatID, "Formato mese non valido. Usa <code>2026-11</code>.")
		}
		year, month = t.Year(), t.Month()
	}
	return b.sendCalendar(chatID, 0, year, month)
}

func (b *Bot) sendDashboard(chatID int64) error {
	return b.sendText(chatID, renderDashboard(b.activities.List(), b.now()))
}

func (b *Bot) sendCalendar(chatID int64, messageID int, year int, month time.Month) error {
	cal := service.MonthIndex(year, month, b.activities.List())
	text := renderCalendar(cal, b.now())
	markup := calendarKeyboard(year, month)
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		return err
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) sendList(chatID int64, filter service.Filter) error {
	list := service.FilterActivities(b.activities.List(), filter)
	text, shown := renderList(list, filter, b.now())
	if len(shown) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, listKeyboard(shown))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbTogglePrefix))
		if err != nil {
			return nil
		}
		return b.toggleAndReport(ctx, chatID, id)
	case strings.HasPrefix(data, cbEditPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbEditPrefix))
		if err != nil {
			return nil
		}
		return b.startActivityForm(chatID, cb.From.ID, id)
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(chatID, cb.From.ID, id)
	case strings.HasPrefix(data, cbCalendarPrefix):
		t, err := time.ParseInLocation("2006-01", strings.TrimPrefix(data, cbCalendarPrefix), b.loc)
		if err != nil {
			return nil
		}
		return b.sendCalendar(chatID, cb.Message.MessageID, t.Year(), t.Month())
	default:
		return nil
	}
}

func (b *Bot) toggleAndReport(ctx context.Context, chatID int64, id int64) error {
	b.syncing(chatID)
	activity, err := b.activities.ToggleStatus(ctx, id)
	if err != nil {
		return b.reportError(chatID, err)
	}
	log.Printf("[info] activity toggled id=%d status=%s", activity.ID, activity.Status)

	text := fmt.Sprintf("✅ «%s» completata.", escape(activity.Title))
	if activity.IsPending() {
		text = fmt.Sprintf("↩️ «%s» riaperta.", escape(activity.Title))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) askDeleteConfirmation(chatID, userID, id int64) error {
	activity, ok := b.activities.Get(id)
	if !ok {
		return b.sendText(chatID, "Attività non trovata.")
	}
	b.setConfirmation(userID, confirmationRequest{activityID: id})
	text := fmt.Sprintf("Sei sicuro di voler eliminare «%s» (#%d)? Verrà rimossa per tutti gli utenti.", escape(activity.Title), activity.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteAndReport(ctx, msg.Chat.ID, req.activityID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Eliminazione annullata.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Conferma o annulla l'eliminazione.", confirmKeyboard())
	}
}

func (b *Bot) deleteAndReport(ctx context.Context, chatID, id int64) error {
	activity, ok := b.activities.Get(id)
	b.syncing(chatID)
	removed, err := b.activities.Remove(ctx, id)
	if err != nil {
		return b.reportError(chatID, err)
	}
	if !removed || !ok {
		return b.sendText(chatID, "Attività non trovata o già eliminata.")
	}
	log.Printf("[info] activity deleted id=%d", id)
	return b.sendText(chatID, fmt.Sprintf("🗑 «%s» eliminata.", escape(activity.Title)))
}

// reportError turns repository and storage errors into a chat notice.
func (b *Bot) reportError(chatID int64, err error) error {
	var serr *store.StorageError
	switch {
	case errors.Is(err, repository.ErrValidation):
		return b.sendText(chatID, fmt.Sprintf("⚠️ Compila almeno titolo, scadenza e macrofunzione.\n<i>%s</i>", escape(err.Error())))
	case errors.Is(err, repository.ErrNotFound):
		return b.sendText(chatID, "Attività non trovata.")
	case errors.As(err, &serr):
		log.Printf("[warn] %v", err)
		if serr.Timeout() {
			return b.sendText(chatID, "⏱ Il salvataggio non ha risposto in tempo. Nessuna modifica applicata, riprova.")
		}
		return b.sendText(chatID, "❌ Errore nel salvataggio. Nessuna modifica applicata, riprova.")
	default:
		return b.sendText(chatID, fmt.Sprintf("Errore: %s", escape(err.Error())))
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, chatID, from.FirstName, from.LastName, from.UserName)
}

// actorName is the name stamped on created or modified activities.
func actorName(from *tgbotapi.User) string {
	if from == nil {
		return ""
	}
	u := model.User{FirstName: from.FirstName, LastName: from.LastName, Username: from.UserName}
	return u.DisplayName()
}

func (b *Bot) now() time.Time {
	return b.clock.Now().In(b.loc)
}

// syncing shows the typing indicator while a write is in flight.
func (b *Bot) syncing(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("chat action: %v", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	return b.send(msg)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.send(msg)
}

// send delivers msg; when Telegram refuses it the chat gets a short plain
// notice instead of silence.
func (b *Bot) send(msg tgbotapi.MessageConfig) error {
	if _, err := b.api.Send(msg); err != nil {
		notice := tgbotapi.NewMessage(msg.ChatID, sendFailedNotice)
		notice.ReplyMarkup = mainMenuKeyboard()
		if _, nerr := b.api.Send(notice); nerr != nil {
			log.Printf("[warn] send notice to chat %d: %v", msg.ChatID, nerr)
		}
		return fmt.Errorf("send to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// parseFilter reads "/attivita [categoria] [stato] [testo]". Tokens naming a
// category or a status set that filter; the rest is the search text.
func parseFilter(args string) service.Filter {
	f := service.Filter{Category: service.FilterAll, Status: service.FilterAll}
	var search []string
	for _, tok := range strings.Fields(args) {
		lower := strings.ToLower(tok)
		if c := model.Category(lower); c.Valid() && f.Category == service.FilterAll {
			f.Category = lower
			continue
		}
		if s, ok := statusAliases[lower]; ok && f.Status == service.FilterAll {
			f.Status = string(s)
			continue
		}
		search = append(search, tok)
	}
	f.Search = strings.Join(search, " ")
	return f
}

var statusAliases = map[string]model.Status{
	"pending":    model.StatusPending,
	"aperte":     model.StatusPending,
	"incorso":    model.StatusPending,
	"completed":  model.StatusCompleted,
	"completate": model.StatusCompleted,
	"chiuse":     model.StatusCompleted,
}

func escape(s string) string {
	return html.EscapeString(s)
}

const helpText = "ℹ️ <b>Comandi</b>\n" +
	"• /dashboard — riepilogo e prossime scadenze\n" +
	"• /calendario [AAAA-MM] — scadenze del mese\n" +
	"• /attivita [macrofunzione] [aperte|completate] [testo] — elenco filtrato\n" +
	"• /nuova — aggiungi un'attività\n" +
	"• /modifica &lt;id&gt; — modifica un'attività\n" +
	"• /stato &lt;id&gt; — segna completata o riapri\n" +
	"• /elimina &lt;id&gt; — elimina (con conferma)\n" +
	"• /email — impostazioni notifiche email\n" +
	"• /notifiche on|off — notifiche in questa chat\n" +
	"• /aggiorna — ricarica i dati condivisi\n" +
	"• /annulla — interrompi l'operazione in corso"
