package app

import (
	"fmt"
	"strconv"

	"proxyfinder/internal/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	workingStyle = cellStyle.Foreground(lipgloss.Color("42"))
	brokenStyle  = cellStyle.Foreground(lipgloss.Color("203"))
)

const workingColumn = 1

func renderProxyTable(proxies []domain.Proxy) string {
	rows := make([][]string, len(proxies))
	for i, proxy := range proxies {
		rows[i] = []string{
			proxy.Address,
			status(proxy),
			latency(proxy),
			proxy.Location.String("country", "country_name"),
			proxy.UpdatedAt.Format("2006-01-02 15:04"),
			proxy.ErrorText(),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("PROXY", "STATUS", "LATENCY", "COUNTRY", "UPDATED", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == workingColumn && row >= 0 && row < len(proxies):
				if proxies[row].IsWorking {
					return workingStyle
				}
				if proxies[row].IsChecked {
					return brokenStyle
				}
			}
			return cellStyle
		})

	return t.String()
}

func status(proxy domain.Proxy) string {
	switch {
	case !proxy.IsChecked:
		return "unchecked"
	case proxy.IsWorking:
		return "working"
	default:
		return "broken"
	}
}

func latency(proxy domain.Proxy) string {
	if !proxy.IsWorking {
		return "-"
	}
	return strconv.FormatFloat(proxy.LatencyMs, 'f', 2, 64) + " ms"
}

func countLine(count int64, statusName string) string {
	if statusName == "all" || statusName == "" {
		return fmt.Sprintf("Total proxies: %d in the database", count)
	}
	return fmt.Sprintf("Total proxies: %d %s in the database", count, statusName)
}
