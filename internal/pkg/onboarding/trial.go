package onboarding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rendeza/rendeza/internal/pkg/mail"
)

// Booking types of the free trial form.
const (
	BookingRecurring     = "recurring"
	BookingSpecificDates = "specific-dates"
)

const StartThisWeek = "this-week"

var (
	ErrInvalidBookingType        = errors.New("invalid booking type")
	ErrRecurringFieldsMissing    = errors.New("frequency, preferred day, and start date are required for recurring bookings")
	ErrNoDatesSelected           = errors.New("at least one date must be selected for specific date bookings")
	ErrDateEntryIncomplete       = errors.New("each date must have time and reservation type specified")
	ErrDateNumberOfPeopleMissing = errors.New("number of people is required for this reservation type on one or more dates")
)

// DateEntry is one requested reservation of a specific-dates trial.
type DateEntry struct {
	Date            string      `json:"date"`
	Time            string      `json:"time"`
	ReservationWith string      `json:"reservationWith"`
	NumberOfPeople  PeopleCount `json:"numberOfPeople"`
}

// TrialRequest is a free trial signup.
type TrialRequest struct {
	FirstName           string      `json:"firstName" validate:"required,max=100"`
	LastName            string      `json:"lastName" validate:"required,max=100"`
	PhoneNumber         string      `json:"phoneNumber" validate:"required,max=50"`
	Email               string      `json:"email" validate:"required,email,max=200"`
	Address             string      `json:"address" validate:"required,max=255"`
	ReservationWith     string      `json:"reservationWith" validate:"required"`
	NumberOfPeople      PeopleCount `json:"numberOfPeople"`
	BookingType         string      `json:"bookingType"`
	Frequency           string      `json:"frequency"`
	PreferredDay        string      `json:"preferredDay"`
	PreferredTime       string      `json:"preferredTime" validate:"required"`
	StartDateOption     string      `json:"startDateOption"`
	SpecificDates       []DateEntry `json:"specificDates"`
	FavoriteRestaurants string      `json:"favoriteRestaurants"`
	RestaurantsToTry    string      `json:"restaurantsToTry"`
	DietaryRestrictions string      `json:"dietaryRestrictions"`
	CuisinesToAvoid     string      `json:"cuisinesToAvoid"`
	AdditionalNotes     string      `json:"additionalNotes"`
	AdditionalInfo      string      `json:"additionalInfo"`
}

func (r *TrialRequest) Normalize() {
	for _, f := range []*string{
		&r.FirstName, &r.LastName, &r.PhoneNumber, &r.Email, &r.Address, &r.ReservationWith,
		&r.BookingType, &r.Frequency, &r.PreferredDay, &r.PreferredTime, &r.StartDateOption,
		&r.FavoriteRestaurants, &r.RestaurantsToTry, &r.DietaryRestrictions, &r.CuisinesToAvoid,
		&r.AdditionalNotes, &r.AdditionalInfo,
	} {
		*f = strings.TrimSpace(*f)
	}
	r.PreferredDay = strings.ToLower(r.PreferredDay)
	for i := range r.SpecificDates {
		e := &r.SpecificDates[i]
		e.Date = strings.TrimSpace(e.Date)
		e.Time = strings.TrimSpace(e.Time)
		e.ReservationWith = strings.TrimSpace(e.ReservationWith)
	}
}

// Validate applies the base rules, then the rules of the booking type, then
// the party size rule of the main companion.
func (r *TrialRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingFields, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrMissingFields, err)
	}

	switch r.BookingType {
	case BookingRecurring:
		if r.Frequency == "" || r.PreferredDay == "" || r.StartDateOption == "" {
			return ErrRecurringFieldsMissing
		}
	case BookingSpecificDates:
		if len(r.SpecificDates) == 0 {
			return ErrNoDatesSelected
		}
		for _, e := range r.SpecificDates {
			if e.Date == "" || e.Time == "" || e.ReservationWith == "" {
				return ErrDateEntryIncomplete
			}
			if needsPartySize(e.ReservationWith) && !e.NumberOfPeople.positive() {
				return ErrDateNumberOfPeopleMissing
			}
		}
	default:
		return ErrInvalidBookingType
	}

	if needsPartySize(r.ReservationWith) && !r.NumberOfPeople.positive() {
		return ErrNumberOfPeopleMissing
	}
	return nil
}

func needsPartySize(with string) bool {
	switch with {
	case WithKids, WithWholeFamily, WithFriend:
		return true
	}
	return false
}

func (p PeopleCount) positive() bool {
	return p.Set && p.Value > 0
}

// partySizeLabel is "2" for couples and the given count otherwise.
func partySizeLabel(with string, n PeopleCount) string {
	switch with {
	case WithSpouse, WithPartner:
		return "2"
	}
	if !n.Set {
		return ""
	}
	return strconv.Itoa(n.Value)
}

// To12Hour turns "18:30" into "6:30 PM". Values that are not HH:MM are
// returned unchanged.
func To12Hour(t string) string {
	hour, minute, ok := strings.Cut(t, ":")
	if !ok {
		return t
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return t
	}
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return strconv.Itoa(h) + ":" + minute + " " + period
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NextDateForDay returns the next day named day strictly after today, pushed
// back by weeksFromNow weeks. Unknown names count as Sunday.
func NextDateForDay(today time.Time, day string, weeksFromNow int) time.Time {
	target := weekdays[strings.ToLower(day)]
	days := int(target) - int(today.Weekday())
	if days <= 0 {
		days += 7
	}
	return today.AddDate(0, 0, days+weeksFromNow*7)
}

func longDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// entryDate renders a YYYY-MM-DD or RFC 3339 date for humans.
func entryDate(raw string) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return longDate(t)
		}
	}
	return raw
}

func frequencyLabel(f string) string {
	if f == "weekly" {
		return "Weekly"
	}
	return "Bi-weekly"
}

type trialDateView struct {
	Date      string
	Time      string
	Companion string
	People    string
}

type trialExtra struct {
	Label string
	Text  string
}

type trialView struct {
	FirstName     string
	LastName      string
	Email         string
	PhoneNumber   string
	Address       string
	Companion     string
	PartySize     string
	Recurring     bool
	BookingType   string
	Frequency     string
	Day           string
	StartDate     string
	Dates         []trialDateView
	PreferredTime string
	Extras        []trialExtra
}

func newTrialView(r *TrialRequest, today time.Time) trialView {
	v := trialView{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		PhoneNumber:   r.PhoneNumber,
		Address:       r.Address,
		Companion:     labelOr(companionLabels, r.ReservationWith),
		PartySize:     partySizeLabel(r.ReservationWith, r.NumberOfPeople),
		Recurring:     r.BookingType == BookingRecurring,
		BookingType:   "Specific Dates",
		PreferredTime: To12Hour(r.PreferredTime),
	}

	if v.Recurring {
		v.BookingType = "Recurring Schedule"
		v.Frequency = frequencyLabel(r.Frequency)
		v.Day = labelOr(dayLabels, r.PreferredDay)
		if r.StartDateOption == StartThisWeek {
			v.StartDate = "This coming " + v.Day + " (" + longDate(NextDateForDay(today, r.PreferredDay, 0)) + ")"
		} else {
			v.StartDate = "The following " + v.Day + " (" + longDate(NextDateForDay(today, r.PreferredDay, 1)) + ")"
		}
	} else {
		for _, e := range r.SpecificDates {
			v.Dates = append(v.Dates, trialDateView{
				Date:      entryDate(e.Date),
				Time:      To12Hour(e.Time),
				Companion: labelOr(companionLabels, e.ReservationWith),
				People:    partySizeLabel(e.ReservationWith, e.NumberOfPeople),
			})
		}
	}

	for _, x := range []trialExtra{
		{"Favorite Restaurants", r.FavoriteRestaurants},
		{"Restaurants to Try", r.RestaurantsToTry},
		{"Dietary Restrictions", r.DietaryRestrictions},
		{"Cuisines/Places to Avoid", r.CuisinesToAvoid},
		{"Additional Notes", r.AdditionalNotes},
		{"Additional Information", r.AdditionalInfo},
	} {
		if x.Text != "" {
			v.Extras = append(v.Extras, x)
		}
	}
	return v
}

// TrialSubject is the subject of the signup email.
func TrialSubject(r *TrialRequest) string {
	booking := ""
	if r.BookingType == BookingRecurring {
		booking = frequencyLabel(r.Frequency) + " on " + labelOr(dayLabels, r.PreferredDay) + "s"
	} else {
		n := len(r.SpecificDates)
		booking = strconv.Itoa(n) + " specific date"
		if n > 1 {
			booking += "s"
		}
	}
	return "New Free Trial Signup: " + r.FirstName + " " + r.LastName + " - " + booking + " at " + To12Hour(r.PreferredTime)
}

const trialTextEmail = `New Free Trial Signup

Personal Information:
Name: {{.FirstName}} {{.LastName}}
Email: {{.Email}}
Phone: {{.PhoneNumber}}
Address: {{.Address}}

Reservation Details:
With: {{.Companion}}
Number of People: {{.PartySize}}
Booking Type: {{.BookingType}}
Schedule:
{{if .Recurring}}{{.Frequency}} on {{.Day}}s
Start Date: {{.StartDate}}
{{else}}{{range $i, $d := .Dates}}{{if $i}}
{{end}}{{$d.Date}} at {{$d.Time}}
  With: {{$d.Companion}}{{if $d.People}} ({{$d.People}} people){{end}}
{{end}}{{end}}Preferred Time: {{.PreferredTime}}
{{range .Extras}}
{{.Label}}:
{{.Text}}
{{end}}`

const trialHTMLEmail = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #543A14;">New Free Trial Signup</h2>
  <h3 style="color: #543A14;">Personal Information</h3>
  <p><strong>Name:</strong> {{.FirstName}} {{.LastName}}</p>
  <p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
  <p><strong>Phone:</strong> {{.PhoneNumber}}</p>
  <p><strong>Address:</strong> {{.Address}}</p>
  <h3 style="color: #543A14;">Reservation Details</h3>
  <p><strong>With:</strong> {{.Companion}}</p>
  <p><strong>Number of People:</strong> {{.PartySize}}</p>
  <p><strong>Booking Type:</strong> {{.BookingType}}</p>
  {{if .Recurring}}
  <p><strong>Frequency:</strong> {{.Frequency}}</p>
  <p><strong>Preferred Day:</strong> {{.Day}}</p>
  <p><strong>Start Date:</strong> {{.StartDate}}</p>
  {{else}}
  <p><strong>Selected Dates:</strong></p>
  {{range .Dates}}
  <div style="margin: 15px 0; padding: 15px; background-color: #fafafa; border-left: 3px solid #F0BB78;">
    <p style="font-weight: 600;">{{.Date}}</p>
    <p>Time: {{.Time}}</p>
    <p>With: {{.Companion}}{{if .People}} ({{.People}} people){{end}}</p>
  </div>
  {{end}}
  {{end}}
  <p><strong>Preferred Time:</strong> {{.PreferredTime}}</p>
  {{if .Extras}}
  <h3 style="color: #543A14;">Additional Preferences</h3>
  {{range .Extras}}
  <p><strong>{{.Label}}:</strong></p>
  <div style="white-space: pre-wrap;">{{.Text}}</div>
  {{end}}
  {{end}}
</body>
</html>
`

var (
	trialTextTmpl = texttemplate.Must(texttemplate.New("trial.txt").Parse(trialTextEmail))
	trialHTMLTmpl = htmltemplate.Must(htmltemplate.New("trial.html").Parse(trialHTMLEmail))
)

// RenderTrialEmail returns the plain text and HTML bodies of a signup. today
// anchors the start date of recurring schedules.
func RenderTrialEmail(r *TrialRequest, today time.Time) (string, string, error) {
	view := newTrialView(r, today)

	var text, html bytes.Buffer
	if err := trialTextTmpl.Execute(&text, view); err != nil {
		return "", "", err
	}
	if err := trialHTMLTmpl.Execute(&html, view); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(text.String()) + "\n", html.String(), nil
}

// FreeTrial validates r and forwards the signup to the team. The returned
// reference is the X-Entity-Ref-ID of the sent email.
func (svc *Service) FreeTrial(ctx context.Context, r *TrialRequest) (string, error) {
	if svc.mailer == nil {
		return "", ErrMailerNotConfigured
	}

	r.Normalize()
	if err := r.Validate(); err != nil {
		return "", err
	}
	log.Infof("[FreeTrial] Signup from %s (booking=%s, with=%s, dates=%d)", r.Email, r.BookingType, r.ReservationWith, len(r.SpecificDates))

	now := svc.now()
	text, html, err := RenderTrialEmail(r, now)
	if err != nil {
		return "", fmt.Errorf("render free trial email: %w", err)
	}
	ref := fmt.Sprintf("free-trial-%d", now.UnixMilli())
	err = svc.mailer.Send(ctx, mail.Message{
		To:      svc.notifyTo,
		ReplyTo: r.Email,
		Subject: TrialSubject(r),
		Text:    text,
		HTML:    html,
		Headers: map[string]string{"X-Entity-Ref-ID": ref},
	})
	if err != nil {
		return "", fmt.Errorf("send free trial email: %w", err)
	}

	log.Infof("[FreeTrial] Signup %s sent", ref)
	return ref, nil
}

// IsTrialValidationError reports whether err from FreeTrial should be
// answered with 400.
func IsTrialValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingFields, ErrNumberOfPeopleMissing, ErrInvalidBookingType, ErrRecurringFieldsMissing,
		ErrNoDatesSelected, ErrDateEntryIncomplete, ErrDateNumberOfPeopleMissing,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
