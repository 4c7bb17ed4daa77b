package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/jukebox/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	cell  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		cell:  lipgloss.NewStyle().Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// zone colors a zone name by how useful the player's targets are.
func (p *Palette) zone(z models.Zone) string {
	switch z {
	case models.ZoneHighInfluence:
		return p.ok.Render(string(z))
	case models.ZoneGoodInfluence:
		return p.ok.UnsetBold().Render(string(z))
	case models.ZoneDeadZone:
		return p.help.Render(string(z))
	default:
		return p.warn.Render(string(z))
	}
}

// check renders a yes/no flag.
func (p *Palette) check(b bool) string {
	if b {
		return p.ok.Render("yes")
	}
	return p.help.Render("no")
}
