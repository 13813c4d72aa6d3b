package openai

import (
	"fmt"
	"math"
	"strings"
)

// Focus selects the requested model family axis.
type Focus string

const (
	FocusText Focus = "text"
	FocusCode Focus = "code"
)

// ParseFocus maps a user-supplied focus name onto a Focus.
func ParseFocus(s string) (Focus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return FocusText, nil
	case "code":
		return FocusCode, nil
	default:
		return "", fmt.Errorf("unknown model focus %q (want text or code)", s)
	}
}

// Size orders the requested capability tier from smallest to largest.
type Size int

const (
	SizeTiny Size = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeXLarge
	SizeXXLarge
)

var sizeNames = [...]string{"tiny", "small", "medium", "large", "x-large", "xx-large"}

func (s Size) String() string {
	if s < SizeTiny || s > SizeXXLarge {
		return fmt.Sprintf("size(%d)", int(s))
	}
	return sizeNames[s]
}

// ParseSize maps a user-supplied tier name onto a Size.
func ParseSize(s string) (Size, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tiny":
		return SizeTiny, nil
	case "small":
		return SizeSmall, nil
	case "medium":
		return SizeMedium, nil
	case "large":
		return SizeLarge, nil
	case "xlarge", "x-large":
		return SizeXLarge, nil
	case "xxlarge", "xx-large":
		return SizeXXLarge, nil
	default:
		return 0, fmt.Errorf("unknown model size %q (want tiny, small, medium, large, xlarge or xxlarge)", s)
	}
}

// Model is a concrete, versioned backend model identifier.
type Model string

const (
	ModelTextAda     Model = "text-ada-001"
	ModelTextBabbage Model = "text-babbage-001"
	ModelTextCurie   Model = "text-curie-001"
	ModelTextDavinci Model = "text-davinci-003"
	ModelCodeCushman Model = "code-cushman-001"
	ModelCodeDavinci Model = "code-davinci-002"
)

type modelKey struct {
	focus Focus
	size  Size
}

type resolution struct {
	model      Model
	substitute *modelKey // set when the match is inexact
}

// resolutionTable is the closed decision table mapping abstract requests to
// concrete models. Keys absent from the table have no usable backend model.
var resolutionTable = map[modelKey]resolution{
	{FocusText, SizeTiny}:    {model: ModelTextAda},
	{FocusText, SizeSmall}:   {model: ModelTextBabbage},
	{FocusText, SizeMedium}:  {model: ModelTextCurie},
	{FocusText, SizeLarge}:   {model: ModelTextCurie, substitute: &modelKey{FocusText, SizeMedium}},
	{FocusText, SizeXLarge}:  {model: ModelTextCurie, substitute: &modelKey{FocusText, SizeMedium}},
	{FocusText, SizeXXLarge}: {model: ModelTextDavinci},
	{FocusCode, SizeMedium}:  {model: ModelCodeCushman},
	{FocusCode, SizeLarge}:   {model: ModelCodeCushman, substitute: &modelKey{FocusCode, SizeMedium}},
	{FocusCode, SizeXLarge}:  {model: ModelCodeCushman, substitute: &modelKey{FocusCode, SizeMedium}},
	{FocusCode, SizeXXLarge}: {model: ModelCodeDavinci},
}

// Fallback describes an inexact model resolution. It is advisory only:
// request construction proceeds with the substituted model.
type Fallback struct {
	RequestedFocus   Focus
	RequestedSize    Size
	SubstitutedFocus Focus
	SubstitutedSize  Size
}

func (f Fallback) String() string {
	return fmt.Sprintf("no exact match for the %s option with a %s focus; falling back to the %s option with a %s focus",
		f.RequestedSize, f.RequestedFocus, f.SubstitutedSize, f.SubstitutedFocus)
}

// ResolveModel maps an abstract focus/size request onto a concrete model.
// The returned Fallback is non-nil when the match was inexact.
func ResolveModel(focus Focus, size Size) (Model, *Fallback, error) {
	res, ok := resolutionTable[modelKey{focus, size}]
	if !ok {
		return "", nil, fmt.Errorf("%w for the %s option with a %s focus", ErrNoMatchingModel, size, focus)
	}
	if res.substitute != nil {
		return res.model, &Fallback{
			RequestedFocus:   focus,
			RequestedSize:    size,
			SubstitutedFocus: res.substitute.focus,
			SubstitutedSize:  res.substitute.size,
		}, nil
	}
	return res.model, nil, nil
}

// ValidateTemperature accepts a sampling temperature whose integer floor is
// 0, 1 or 2, i.e. anything in [0, 3). Out-of-range values are rejected, not
// clamped.
func ValidateTemperature(t float64) (float64, error) {
	switch math.Floor(t) {
	case 0, 1, 2:
		return t, nil
	default:
		return 0, fmt.Errorf("%w: %g", ErrTemperatureOutOfRange, t)
	}
}
