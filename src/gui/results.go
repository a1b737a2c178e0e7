package gui

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"screen-translate/src/bridge"
	"screen-translate/src/glossary"
	"screen-translate/src/messages"
	"screen-translate/src/session"
	"screen-translate/src/store"
)

type CredentialStore interface {
	Get() (string, error)
	Set(key string) error
}

type SettingsStore interface {
	TargetLanguage(fallback string) string
	SetTargetLanguage(lang string) error
	Font() string
	SetFont(family string) error
}

type GlossaryStore interface {
	List() ([]glossary.Term, error)
	Add(t glossary.Term) error
	Delete(id string) error
}

// ResultsOptions wires the results window to persistent state.
type ResultsOptions struct {
	Credentials CredentialStore
	Settings    SettingsStore
	Glossary    GlossaryStore
	// FontPath resolves a family name to a font file.
	FontPath func(family string) (string, bool)
	// Copy puts text on the clipboard.
	Copy func(text string) error
	// DefaultLanguage is used until the user picks one.
	DefaultLanguage string
}

// display is what the results panel shows for one session state.
type display struct {
	Loading     bool
	Error       string
	ShowResults bool
	Original    string
	Translated  string
}

func displayFor(res session.Result) display {
	d := display{Error: res.ErrorMessage}
	running := res.Status == session.StatusRunning
	if res.OriginalText == "" {
		d.Loading = running
		return d
	}
	d.ShowResults = true
	d.Original = res.OriginalText
	d.Translated = res.TranslatedText
	if d.Translated == "" && running {
		d.Translated = "Translating..."
	}
	return d
}

// ResultsWindow is the main window: settings, glossary editor, capture button and
// the latest session's output.
type ResultsWindow struct {
	win    fyne.Window
	app    fyne.App
	bridge *bridge.Surface
	opts   ResultsOptions

	apiKey     *keyEntry
	language   *widget.Select
	font       *widget.Select
	termOrig   *widget.Entry
	termTrans  *widget.Entry
	termList   *widget.List
	errorLabel *widget.Label
	loading    *widget.Label
	original   *widget.Label
	translated *widget.Label
	results    *fyne.Container

	savedKey string

	mu          sync.Mutex
	terms       []glossary.Term
	translation string
}

// NewResultsWindow builds the window on app. It does not show it.
func NewResultsWindow(app fyne.App, s *bridge.Surface, opts ResultsOptions) *ResultsWindow {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = store.DefaultTargetLanguage
	}
	w := &ResultsWindow{
		win:    app.NewWindow("Screen Translate"),
		app:    app,
		bridge: s,
		opts:   opts,
	}
	w.build()
	w.reloadTerms()
	return w
}

func (w *ResultsWindow) Window() fyne.Window { return w.win }

func (w *ResultsWindow) build() {
	w.apiKey = newKeyEntry()
	w.apiKey.SetPlaceHolder("Enter and save your key...")
	if w.opts.Credentials != nil {
		if key, err := w.opts.Credentials.Get(); err == nil {
			w.apiKey.SetText(key)
			w.savedKey = strings.TrimSpace(key)
		}
	}
	w.apiKey.OnSubmitted = w.saveAPIKey
	w.apiKey.onFocusLost = func() { w.saveAPIKey(w.apiKey.Text) }

	current := w.opts.DefaultLanguage
	if w.opts.Settings != nil {
		current = w.opts.Settings.TargetLanguage(current)
	}
	w.language = widget.NewSelect(store.Languages, w.saveLanguage)
	w.language.SetSelected(current)

	w.font = widget.NewSelect(fontOptions(nil), w.saveFont)
	preferred := SystemDefaultFont
	if w.opts.Settings != nil && w.opts.Settings.Font() != "" {
		preferred = w.opts.Settings.Font()
		w.font.Options = fontOptions([]string{preferred})
	}
	w.font.SetSelected(preferred)

	w.termOrig = widget.NewEntry()
	w.termOrig.SetPlaceHolder("Original (e.g. 루카)")
	w.termTrans = widget.NewEntry()
	w.termTrans.SetPlaceHolder("Translated (e.g. Luka)")
	addTerm := widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), w.addTerm)

	w.termList = widget.NewList(
		func() int {
			w.mu.Lock()
			defer w.mu.Unlock()
			return len(w.terms)
		},
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil,
				widget.NewButtonWithIcon("", theme.DeleteIcon(), nil),
				widget.NewLabel(""))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			w.mu.Lock()
			if id >= len(w.terms) {
				w.mu.Unlock()
				return
			}
			term := w.terms[id]
			w.mu.Unlock()

			row := obj.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(term.Original + " → " + term.Translated)
			row.Objects[1].(*widget.Button).OnTapped = func() { w.deleteTerm(term.ID) }
		},
	)

	capture := widget.NewButtonWithIcon("Capture Screen Area", theme.ViewFullScreenIcon(), func() {
		w.bridge.Send(messages.StartCapture{})
	})
	capture.Importance = widget.HighImportance

	w.errorLabel = widget.NewLabel("")
	w.errorLabel.Importance = widget.DangerImportance
	w.errorLabel.Wrapping = fyne.TextWrapWord
	w.errorLabel.Hide()

	w.loading = widget.NewLabel("Processing...")
	w.loading.Hide()

	w.original = widget.NewLabel("")
	w.original.Wrapping = fyne.TextWrapWord
	w.translated = widget.NewLabel("")
	w.translated.Wrapping = fyne.TextWrapWord
	copyBtn := widget.NewButtonWithIcon("Copy", theme.ContentCopyIcon(), w.copyTranslation)

	w.results = container.NewGridWithColumns(2,
		widget.NewCard("Original Text", "", w.original),
		widget.NewCard("Translation", "", container.NewBorder(nil, copyBtn, nil, nil, w.translated)),
	)
	w.results.Hide()

	controls := widget.NewForm(
		widget.NewFormItem("Gemini API Key", w.apiKey),
		widget.NewFormItem("Font", w.font),
		widget.NewFormItem("Translate to", w.language),
	)
	glossaryBox := container.NewBorder(
		widget.NewLabelWithStyle("Glossary", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewBorder(nil, nil, nil, addTerm, container.NewGridWithColumns(2, w.termOrig, w.termTrans)),
		nil, nil,
		w.termList,
	)

	top := container.NewVBox(controls, capture, w.errorLabel, w.loading)
	w.win.SetContent(container.NewBorder(top, nil, nil, nil,
		container.NewVSplit(glossaryBox, container.NewVScroll(w.results))))
	w.win.Resize(fyne.NewSize(720, 640))
}

// LoadFonts fills the font picker from the host. Call once after the window is shown.
func (w *ResultsWindow) LoadFonts(ctx context.Context) {
	go func() {
		names := w.bridge.GetSystemFonts(ctx)
		fyne.Do(func() {
			selected := w.font.Selected
			w.font.Options = fontOptions(names)
			w.font.Refresh()
			w.applyFont(selected)
		})
	}()
}

// Show renders a session state. Must run on the fyne goroutine.
func (w *ResultsWindow) Show(res session.Result) {
	d := displayFor(res)

	w.errorLabel.SetText(d.Error)
	setVisible(w.errorLabel, d.Error != "")
	setVisible(w.loading, d.Loading)

	w.original.SetText(d.Original)
	w.translated.SetText(d.Translated)
	setVisible(w.results, d.ShowResults)

	w.mu.Lock()
	w.translation = res.TranslatedText
	w.mu.Unlock()
}

// Observe returns a session observer that forwards to Show on the fyne goroutine.
func (w *ResultsWindow) Observe() func(session.Result) {
	return func(res session.Result) {
		fyne.Do(func() { w.Show(res) })
	}
}

// saveAPIKey persists the key when it differs from the last saved value.
func (w *ResultsWindow) saveAPIKey(key string) {
	key = strings.TrimSpace(key)
	if w.opts.Credentials == nil || key == w.savedKey {
		return
	}
	if err := w.opts.Credentials.Set(key); err != nil {
		log.Printf("Results: failed to save API key: %v", err)
		return
	}
	w.savedKey = key
}

// keyEntry is a password entry that reports when it loses focus.
type keyEntry struct {
	widget.Entry
	onFocusLost func()
}

func newKeyEntry() *keyEntry {
	e := &keyEntry{}
	e.Password = true
	e.ExtendBaseWidget(e)
	return e
}

func (e *keyEntry) FocusLost() {
	e.Entry.FocusLost()
	if e.onFocusLost != nil {
		e.onFocusLost()
	}
}

func (w *ResultsWindow) saveLanguage(lang string) {
	if w.opts.Settings == nil || lang == "" {
		return
	}
	if err := w.opts.Settings.SetTargetLanguage(lang); err != nil {
		log.Printf("Results: failed to save language: %v", err)
	}
}

func (w *ResultsWindow) saveFont(family string) {
	if w.opts.Settings != nil {
		stored := family
		if family == SystemDefaultFont {
			stored = ""
		}
		if err := w.opts.Settings.SetFont(stored); err != nil {
			log.Printf("Results: failed to save font: %v", err)
		}
	}
	w.applyFont(family)
}

func (w *ResultsWindow) applyFont(family string) {
	path := ""
	if family != SystemDefaultFont && w.opts.FontPath != nil {
		path, _ = w.opts.FontPath(family)
	}
	w.app.Settings().SetTheme(themeForFont(path))
}

func (w *ResultsWindow) addTerm() {
	if w.opts.Glossary == nil {
		return
	}
	term, err := glossary.NewTerm(w.termOrig.Text, w.termTrans.Text)
	if errors.Is(err, glossary.ErrEmptyField) {
		return
	}
	if err == nil {
		err = w.opts.Glossary.Add(term)
	}
	if err != nil {
		log.Printf("Results: failed to add glossary term: %v", err)
		return
	}
	w.termOrig.SetText("")
	w.termTrans.SetText("")
	w.reloadTerms()
}

func (w *ResultsWindow) deleteTerm(id string) {
	if w.opts.Glossary == nil {
		return
	}
	if err := w.opts.Glossary.Delete(id); err != nil {
		log.Printf("Results: failed to delete glossary term %s: %v", id, err)
	}
	w.reloadTerms()
}

func (w *ResultsWindow) reloadTerms() {
	var terms []glossary.Term
	if w.opts.Glossary != nil {
		var err error
		if terms, err = w.opts.Glossary.List(); err != nil {
			log.Printf("Results: failed to load glossary: %v", err)
		}
	}
	w.mu.Lock()
	w.terms = terms
	w.mu.Unlock()
	w.termList.Refresh()
}

func (w *ResultsWindow) copyTranslation() {
	w.mu.Lock()
	text := w.translation
	w.mu.Unlock()
	if text == "" || w.opts.Copy == nil {
		return
	}
	if err := w.opts.Copy(text); err != nil {
		log.Printf("Results: copy failed: %v", err)
	}
}

func setVisible(obj fyne.CanvasObject, visible bool) {
	if visible {
		obj.Show()
	} else {
		obj.Hide()
	}
}
