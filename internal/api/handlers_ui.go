package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/checkmate/internal/evaluate"
	"github.com/dgallion1/checkmate/internal/normalizer"
	"github.com/dgallion1/checkmate/internal/session"
)

type level struct {
	Value int
	Label string
}

var levels = []level{
	{int(evaluate.StrictnessLenient), "1 - lenient"},
	{int(evaluate.StrictnessNormal), "2 - normal"},
	{int(evaluate.StrictnessStrict), "3 - strict"},
}

type formPage struct {
	Mocked      bool
	Error       string
	Conditions  string
	Draft       string
	Strictness  int
	Levels      []level
	Extensions  string
	MaxUploadMB int64
}

type sessionPage struct {
	Mocked bool
	Error  string
	View   session.View
	Counts map[string]int
}

func (s *Server) newFormPage() formPage {
	exts := make([]string, 0, len(normalizer.SupportedExtensions))
	for ext := range normalizer.SupportedExtensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return formPage{
		Mocked:      s.evaluator.Mocked(),
		Strictness:  int(evaluate.StrictnessNormal),
		Levels:      levels,
		Extensions:  strings.Join(exts, ","),
		MaxUploadMB: max(s.cfg.MaxUploadBytes>>20, 1),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.newFormPage())
}

// handleSubmit evaluates a pasted or uploaded draft and redirects to the new
// session. An uploaded file takes precedence over pasted text.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	page := s.newFormPage()
	fail := func(code int, msg string) {
		page.Error = msg
		s.render(w, code, "index.html", page)
	}

	s.limitBody(w, r)
	if err := parseForm(r); err != nil {
		fail(formErrorStatus(err), formErrorMessage(err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	page.Conditions = r.FormValue("conditions")
	page.Draft = r.FormValue("text")
	strictness, err := evaluate.ParseStrictness(r.FormValue("strictness"))
	if err != nil {
		fail(http.StatusBadRequest, "Choose a strictness level from 1 to 3.")
		return
	}
	page.Strictness = int(strictness)

	conditions := evaluate.ParseConditions(page.Conditions)
	if len(conditions) == 0 {
		fail(http.StatusBadRequest, "Enter at least one condition, one per line.")
		return
	}

	up, err := s.readUpload(r, "file")
	if err != nil {
		fail(formErrorStatus(err), formErrorMessage(err))
		return
	}

	sess := session.New(conditions, page.Draft, strictness)
	if up != nil {
		res, err := s.normalize(up, normalizer.FormatUnknown)
		if err != nil {
			fail(normalizeErrorStatus(err), uploadErrorMessage(up.filename, err))
			return
		}
		if strings.TrimSpace(res.Text) == "" {
			fail(http.StatusUnprocessableEntity, fmt.Sprintf("No text could be extracted from %s. Scanned documents are not supported; paste the text instead.", up.filename))
			return
		}
		sess.Draft = res.Text
		sess.Filename = up.filename
		sess.Format = res.Format.String()
	}
	if strings.TrimSpace(sess.Draft) == "" {
		fail(http.StatusBadRequest, "Paste the draft or upload a file.")
		return
	}

	out, err := s.evaluator.Evaluate(r.Context(), evaluate.EvaluateInput{
		Conditions: sess.Conditions,
		Draft:      sess.Draft,
		Strictness: strictness,
	})
	if err != nil {
		s.log.Error("evaluation failed", "error", err)
		fail(llmErrorStatus(err), "Evaluation failed: "+err.Error())
		return
	}
	sess.SetOutcome(out)
	s.observeVerdicts(out)
	s.sessions.Put(sess)

	http.Redirect(w, r, "/sessions/"+sess.ID, http.StatusSeeOther)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	s.renderSession(w, http.StatusOK, sess, "")
}

// handleReevaluate evaluates the session's current draft again, for instance
// after suggestions were appended.
func (s *Server) handleReevaluate(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	view := sess.Snapshot()
	out, err := s.evaluator.Evaluate(r.Context(), evaluate.EvaluateInput{
		Conditions: view.Conditions,
		Draft:      view.Draft,
		Strictness: view.Strictness,
	})
	if err != nil {
		s.log.Error("re-evaluation failed", "session_id", view.ID, "error", err)
		s.renderSession(w, llmErrorStatus(err), sess, "Evaluation failed: "+err.Error())
		return
	}
	sess.SetOutcome(out)
	s.observeVerdicts(out)
	http.Redirect(w, r, "/sessions/"+view.ID, http.StatusSeeOther)
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	view := sess.Snapshot()
	corrected, err := s.evaluator.Correct(r.Context(), view.Conditions, view.Draft)
	if err != nil {
		s.log.Error("correction failed", "session_id", view.ID, "error", err)
		s.renderSession(w, llmErrorStatus(err), sess, "Correction failed: "+err.Error())
		return
	}
	sess.SetCorrected(corrected)
	http.Redirect(w, r, "/sessions/"+view.ID+"#corrected", http.StatusSeeOther)
}

func (s *Server) handleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.renderSession(w, http.StatusBadRequest, sess, "Invalid condition number.")
		return
	}
	if _, err := sess.ApplySuggestion(index); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, session.ErrNoSuggestion) {
			code = http.StatusNotFound
		}
		s.renderSession(w, code, sess, fmt.Sprintf("Condition %d has no suggestion to apply.", index))
		return
	}
	http.Redirect(w, r, "/sessions/"+sess.ID+"#draft", http.StatusSeeOther)
}

func (s *Server) handleDownloadCorrected(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	view := sess.Snapshot()
	if view.Corrected == "" {
		http.Error(w, "no corrected text yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="corrected_text.txt"`)
	_, _ = w.Write([]byte(view.Corrected))
}

// session loads the session named in the URL, writing a 404 page when it is
// unknown or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		page := s.newFormPage()
		page.Error = "This evaluation has expired or does not exist. Start a new one."
		s.render(w, http.StatusNotFound, "index.html", page)
	}
	return sess
}

func (s *Server) renderSession(w http.ResponseWriter, code int, sess *session.Session, errMsg string) {
	view := sess.Snapshot()
	counts := map[string]int{}
	if view.Evaluation != nil {
		for st, n := range view.Evaluation.Counts() {
			counts[string(st)] = n
		}
	}
	s.render(w, code, "session.html", sessionPage{
		Mocked: s.evaluator.Mocked(),
		Error:  errMsg,
		View:   view,
		Counts: counts,
	})
}
