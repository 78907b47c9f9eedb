package shell

import (
	"strings"

	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/match"
)

// act expands $-codes in a social or message template:
//
//	$n/$N  actor/victim name
//	$m/$M  them   $s/$S  their   $e/$E  they
//
// Characters have no gender here, so pronouns are neutral.
func act(format string, ch, vict *Session) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '$' || i+1 == len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'n':
			b.WriteString(ch.Name)
		case 'N':
			if vict != nil {
				b.WriteString(vict.Name)
			}
		case 'm', 'M':
			b.WriteString("them")
		case 's', 'S':
			b.WriteString("their")
		case 'e', 'E':
			b.WriteString("they")
		case '$':
			b.WriteByte('$')
		default:
			b.WriteByte('$')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

// checkSocial runs the social named by verb, if there is one.
func (sh *Shell) checkSocial(s *Session, verb, args string) bool {
	soc, ok := sh.cats().Socials.FindPrefix(verb)
	if !ok {
		return false
	}
	target, _, _ := strings.Cut(args, " ")

	if target == "" {
		sh.actTo(s, soc.CharNoArg, s, nil)
		sh.actOthers(s, nil, soc.OthersNoArg)
		return true
	}
	vict := sh.findTarget(target)
	switch {
	case vict == nil:
		msg := soc.CharNotFound
		if msg == "" {
			msg = "They aren't here."
		}
		s.send(msg)
	case vict == s:
		sh.actTo(s, soc.CharAuto, s, nil)
		sh.actOthers(s, nil, soc.OthersAuto)
	default:
		sh.actTo(s, soc.CharFound, s, vict)
		sh.actTo(vict, soc.VictFound, s, vict)
		sh.actOthers(s, vict, soc.OthersFound)
	}
	return true
}

func (sh *Shell) actTo(to *Session, format string, ch, vict *Session) {
	if format != "" {
		to.send(act(format, ch, vict))
	}
}

// actOthers sends format to everyone but ch and vict.
func (sh *Shell) actOthers(ch, vict *Session, format string) {
	if format == "" {
		return
	}
	msg := act(format, ch, vict)
	for _, o := range sh.sessions {
		if o != ch && o != vict && o.state == statePlaying {
			o.send(msg)
		}
	}
}

// tutorialMatches reports whether line answers the current tutorial step.
func (sh *Shell) tutorialMatches(s *Session, line string) bool {
	if s.tutorial == nil || s.step >= len(s.tutorial.Steps) {
		return false
	}
	return matchStep(s.tutorial.Steps[s.step], line)
}

func (sh *Shell) advanceTutorial(s *Session) {
	s.step++
	if s.step < len(s.tutorial.Steps) {
		s.send(s.tutorial.Steps[s.step].Prompt)
		return
	}
	if s.tutorial.Finish != "" {
		s.send(s.tutorial.Finish)
	}
	s.tutorial, s.step = nil, 0
}

func startTutorial(s *Session, t *gamedb.Tutorial) {
	s.tutorial, s.step = t, 0
	if t.Blurb != "" {
		s.send(t.Blurb)
	}
	if len(t.Steps) > 0 {
		s.send(t.Steps[0].Prompt)
	}
}

func matchStep(step gamedb.TutorialStep, line string) bool {
	return match.Match(step.Match, line, '#')
}
