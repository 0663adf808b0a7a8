package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"research-scheduler/internal/model"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageCategory
	stageTitle
	stageDescription
	stageDeadline
	stageRecurring
	stageRecurringType
	stageResponsible
	stageNotifyDays
	stageNotifyEmail
	stageNotifyPush
	stageEmailEnabled
	stageEmailAddress
	stageEmailDigest
	stageEmailDay
)

type conversationState struct {
	stage conversationStage
	// editID is zero while creating a new activity.
	editID   int64
	draft    model.ActivityDraft
	settings model.EmailSettings
}

func (s *conversationState) editing() bool {
	return s.editID != 0
}

var recurrenceLabels = map[model.Recurrence]string{
	model.RecurrenceWeekly:    "Settimanale",
	model.RecurrenceMonthly:   "Mensile",
	model.RecurrenceQuarterly: "Trimestrale",
	model.RecurrenceYearly:    "Annuale",
}

var weekdayLabels = map[time.Weekday]string{
	time.Monday:    "Lunedì",
	time.Tuesday:   "Martedì",
	time.Wednesday: "Mercoledì",
	time.Thursday:  "Giovedì",
	time.Friday:    "Venerdì",
	time.Saturday:  "Sabato",
	time.Sunday:    "Domenica",
}

func (b *Bot) startActivityForm(chatID, userID, id int64) error {
	b.clearConfirmation(userID)
	state := &conversationState{stage: stageCategory, draft: model.NewActivityDraft()}
	intro := "🆕 Nuova attività.\n<b>Passo 1:</b> scegli la macrofunzione."
	if id != 0 {
		activity, ok := b.activities.Get(id)
		if !ok {
			return b.sendText(chatID, "Attività non trovata.")
		}
		state.editID = id
		state.draft = model.DraftFrom(activity)
		intro = fmt.Sprintf("✏️ Modifica di «%s».\nPremi «%s» per mantenere il valore attuale.\n<b>Passo 1:</b> macrofunzione (attuale: %s).",
			escape(activity.Title), btnSkip, escape(activity.Category.Label()))
	}
	b.setConversation(userID, state)
	return b.sendWithReplyMarkup(chatID, intro, categoryKeyboard(state.editing()))
}

func (b *Bot) startEmailForm(chatID, userID int64) error {
	b.clearConfirmation(userID)
	current := b.settings.Get()
	b.setConversation(userID, &conversationState{stage: stageEmailEnabled, settings: current})
	text := "✉️ <b>Notifiche email</b>\n" + renderSettings(current) + "\n\nAttivare le notifiche email?"
	return b.sendWithReplyMarkup(chatID, text, yesNoKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID
	skip := isSkipInput(text)

	switch state.stage {
	case stageCategory:
		if !(skip && state.editing()) {
			category, ok := parseCategory(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Macrofunzione non riconosciuta. Scegli dalla tastiera.", categoryKeyboard(state.editing()))
			}
			state.draft.Category = category
		}
		state.stage = stageTitle
		return b.prompt(chatID, state, "📝 Titolo dell'attività?", state.draft.Title)

	case stageTitle:
		if !(skip && state.editing()) {
			if text == "" || skip {
				return b.sendWithReplyMarkup(chatID, "Il titolo è obbligatorio.", cancelKeyboard())
			}
			state.draft.Title = text
		}
		state.stage = stageDescription
		return b.promptClearable(chatID, state, "🗒 Descrizione (o «Salta»).", state.draft.Description)

	case stageDescription:
		switch {
		case isClearInput(text):
			state.draft.Description = ""
		case !skip:
			state.draft.Description = text
		}
		state.stage = stageDeadline
		return b.prompt(chatID, state, "⏰ Scadenza nel formato <code>2026-11-30</code> o <code>30/11/2026</code>.", state.draft.Deadline)

	case stageDeadline:
		if !(skip && state.editing()) {
			deadline, err := parseDeadlineInput(text, b.loc)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Data non valida. Usa <code>2026-11-30</code> o <code>30/11/2026</code>.", cancelKeyboard())
			}
			state.draft.Deadline = deadline
		}
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🔁 È un'attività ricorrente? (attuale: %s)", yesNo(state.draft.Recurring)), yesNoKeyboard())

	case stageRecurring:
		value, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Rispondi «%s» o «%s».", btnYes, btnNo), yesNoKeyboard())
		}
		state.draft.Recurring = value
		if value {
			state.stage = stageRecurringType
			return b.sendWithReplyMarkup(chatID, "📆 Con quale cadenza?", recurrenceKeyboard())
		}
		state.stage = stageResponsible
		return b.promptClearable(chatID, state, "👤 Responsabile (o «Salta»).", state.draft.Responsible)

	case stageRecurringType:
		recurrence, ok := parseRecurrence(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Scegli una cadenza dalla tastiera.", recurrenceKeyboard())
		}
		state.draft.RecurringType = recurrence
		state.stage = stageResponsible
		return b.promptClearable(chatID, state, "👤 Responsabile (o «Salta»).", state.draft.Responsible)

	case stageResponsible:
		switch {
		case isClearInput(text):
			state.draft.Responsible = ""
		case !skip:
			state.draft.Responsible = text
		}
		state.stage = stageNotifyDays
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🔔 Quanti giorni prima avvisare? (attuale: %d)", state.draft.NotifyDays), leadTimeKeyboard())

	case stageNotifyDays:
		if !skip {
			n, err := strconv.Atoi(strings.Fields(text + " x")[0])
			if err != nil || !model.LeadDays(n).Valid() {
				return b.sendWithReplyMarkup(chatID, "Scegli tra 1, 3, 7, 15 o 30 giorni.", leadTimeKeyboard())
			}
			state.draft.NotifyDays = model.LeadDays(n)
		}
		state.stage = stageNotifyEmail
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("✉️ Promemoria via email? (attuale: %s)", yesNo(state.draft.NotifyEmail)), yesNoKeyboard())

	case stageNotifyEmail:
		value, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Rispondi «%s» o «%s».", btnYes, btnNo), yesNoKeyboard())
		}
		state.draft.NotifyEmail = value
		state.stage = stageNotifyPush
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("📲 Promemoria in chat? (attuale: %s)", yesNo(state.draft.NotifyPush)), yesNoKeyboard())

	case stageNotifyPush:
		value, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Rispondi «%s» o «%s».", btnYes, btnNo), yesNoKeyboard())
		}
		state.draft.NotifyPush = value
		return b.finishActivityForm(ctx, msg, state)

	case stageEmailEnabled:
		value, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Rispondi «%s» o «%s».", btnYes, btnNo), yesNoKeyboard())
		}
		state.settings.Enabled = value
		if !value {
			return b.finishEmailForm(ctx, msg, state)
		}
		state.stage = stageEmailAddress
		return b.promptOptional(chatID, state, "📧 Indirizzo email destinatario?", state.settings.Email)

	case stageEmailAddress:
		if !(skip && state.settings.Email != "") {
			if !strings.Contains(text, "@") {
				return b.sendWithReplyMarkup(chatID, "Indirizzo non valido.", cancelKeyboard())
			}
			state.settings.Email = text
		}
		state.stage = stageEmailDigest
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🗓 Riepilogo settimanale? (attuale: %s)", yesNo(state.settings.WeeklyDigest)), yesNoKeyboard())

	case stageEmailDigest:
		value, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Rispondi «%s» o «%s».", btnYes, btnNo), yesNoKeyboard())
		}
		state.settings.WeeklyDigest = value
		if !value {
			return b.finishEmailForm(ctx, msg, state)
		}
		state.stage = stageEmailDay
		return b.sendWithReplyMarkup(chatID, "In quale giorno inviarlo?", weekdayKeyboard())

	case stageEmailDay:
		day, ok := parseWeekdayInput(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Scegli un giorno dalla tastiera.", weekdayKeyboard())
		}
		state.settings.DigestDay = strings.ToLower(day.String())
		return b.finishEmailForm(ctx, msg, state)

	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "Conversazione interrotta. Ricomincia con /nuova.")
	}
}

func (b *Bot) prompt(chatID int64, state *conversationState, text, current string) error {
	if state.editing() && current != "" {
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("%s\nAttuale: <i>%s</i>", text, escape(current)), skipKeyboard())
	}
	return b.sendWithReplyMarkup(chatID, text, cancelKeyboard())
}

func (b *Bot) promptOptional(chatID int64, state *conversationState, text, current string) error {
	if current != "" {
		text = fmt.Sprintf("%s\nAttuale: <i>%s</i>", text, escape(current))
	}
	return b.sendWithReplyMarkup(chatID, text, skipKeyboard())
}

// promptClearable asks for an optional field that an edit may empty.
func (b *Bot) promptClearable(chatID int64, state *conversationState, text, current string) error {
	if !state.editing() || current == "" {
		return b.promptOptional(chatID, state, text, current)
	}
	text = fmt.Sprintf("%s\nAttuale: <i>%s</i>\n«%s» o <code>-</code> per svuotare.", text, escape(current), btnClear)
	return b.sendWithReplyMarkup(chatID, text, clearKeyboard())
}

func (b *Bot) finishActivityForm(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	chatID := msg.Chat.ID
	actor := actorName(msg.From)
	b.syncing(chatID)

	var (
		activity model.Activity
		err      error
	)
	if state.editing() {
		activity, err = b.activities.Update(ctx, state.editID, state.draft, actor)
	} else {
		activity, err = b.activities.Add(ctx, state.draft, actor)
	}
	if err != nil {
		// The form stays open so the user can retry the last answer.
		return b.reportError(chatID, err)
	}
	b.clearConversation(msg.From.ID)

	log.Printf("[info] activity saved id=%d by=%s edit=%t", activity.ID, actor, state.editing())
	header := "✅ Attività creata."
	if state.editing() {
		header = "✅ Attività aggiornata."
	}
	return b.sendText(chatID, header+"\n\n"+renderActivity(activity, b.now()))
}

func (b *Bot) finishEmailForm(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	chatID := msg.Chat.ID
	b.syncing(chatID)
	saved, err := b.settings.Save(ctx, state.settings)
	if err != nil {
		return b.reportError(chatID, err)
	}
	b.clearConversation(msg.From.ID)
	log.Printf("[info] email settings saved enabled=%t digest=%t", saved.Enabled, saved.WeeklyDigest)
	return b.sendText(chatID, "✅ Impostazioni salvate.\n"+renderSettings(saved))
}

func parseCategory(text string) (model.Category, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	for _, c := range model.Categories {
		if value == string(c) || value == strings.ToLower(c.Label()) {
			return c, true
		}
	}
	return "", false
}

func parseRecurrence(text string) (model.Recurrence, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	for r, label := range recurrenceLabels {
		if value == string(r) || value == strings.ToLower(label) {
			return r, true
		}
	}
	return "", false
}

func parseWeekdayInput(text string) (time.Weekday, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	for d, label := range weekdayLabels {
		if value == strings.ToLower(label) {
			return d, true
		}
	}
	return model.ParseWeekday(value)
}

// parseDeadlineInput accepts ISO dates and the Italian dd/mm/yyyy form.
func parseDeadlineInput(text string, loc *time.Location) (string, error) {
	text = strings.TrimSpace(text)
	if t, err := model.ParseDate(text, loc); err == nil {
		return model.FormatDate(t), nil
	}
	t, err := time.ParseInLocation("02/01/2006", text, loc)
	if err != nil {
		return "", err
	}
	return model.FormatDate(t), nil
}

func parseYesNo(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(btnYes), "si", "sì", "s", "yes":
		return true, true
	case strings.ToLower(btnNo), "n":
		return false, true
	}
	return false, false
}

func yesNo(v bool) string {
	if v {
		return btnYes
	}
	return btnNo
}
