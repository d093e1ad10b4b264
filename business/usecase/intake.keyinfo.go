package usecase

import (
	"regexp"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/hollowlog/magpie/business/entity"
)

const (
	maxStatusLines  = 10
	maxSettingPairs = 20
	maxEndpoints    = 10
	maxVersionLine  = 120
)

var (
	statusLineRe = regexp.MustCompile(`(?i)(status|state|mode)\s*[:=]`)
	keyValueRe   = regexp.MustCompile(`^\s*([A-Za-z0-9_.-]+)\s*[:=]\s*(.+?)\s*$`)
	urlRe        = regexp.MustCompile(`https?://[^\s"']+`)
	hostPortRe   = regexp.MustCompile(`\b[A-Za-z0-9.-]+\.[A-Za-z]{2,}:\d{1,5}\b`)
	versionRe    = regexp.MustCompile(`\bv?\d+\.\d+(\.\d+)?\b`)
)

// extractKeyInfo performs the lightweight structured-field extraction
// keyed by filename and category. Tolerant: it never fails, it only
// leaves fields out.
func (uc *IntakeUseCase) extractKeyInfo(name string, category entity.FileCategory, content string) map[string]string {
	info := make(map[string]string)
	lower := strings.ToLower(name)

	if strings.Contains(lower, "status") || strings.Contains(lower, "state") || category == entity.CategorySystem {
		if lines := statusLines(content); lines != "" {
			info["status_lines"] = lines
		}
	}

	if category == entity.CategoryConfig || strings.Contains(lower, "settings") || strings.Contains(lower, "config") {
		settingPairs(content, info)
	}

	if endpoints := scanEndpoints(content); endpoints != "" {
		info["endpoints"] = endpoints
	}

	if strings.Contains(lower, "version") {
		info["version"] = versionValue(content)
	}

	if len(info) == 0 {
		return nil
	}
	return info
}

func statusLines(content string) string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if statusLineRe.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
			if len(out) == maxStatusLines {
				break
			}
		}
	}
	return strings.Join(out, "\n")
}

// settingPairs flattens a JSON settings block, or scans key=value /
// key: value pairs when the content is not JSON
func settingPairs(content string, info map[string]string) {
	if v, err := fastjson.Parse(content); err == nil && v.Type() == fastjson.TypeObject {
		obj, _ := v.Object()
		n := 0
		obj.Visit(func(key []byte, v *fastjson.Value) {
			if n >= maxSettingPairs {
				return
			}
			switch v.Type() {
			case fastjson.TypeString:
				b, _ := v.StringBytes()
				info["setting."+string(key)] = string(b)
				n++
			case fastjson.TypeNumber, fastjson.TypeTrue, fastjson.TypeFalse:
				info["setting."+string(key)] = v.String()
				n++
			}
		})
		return
	}

	n := 0
	for _, line := range strings.Split(content, "\n") {
		m := keyValueRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		info["setting."+m[1]] = m[2]
		if n++; n >= maxSettingPairs {
			break
		}
	}
}

func scanEndpoints(content string) string {
	seen := make(map[string]struct{}, maxEndpoints)
	var out []string

	add := func(matches []string) {
		for _, m := range matches {
			if len(out) >= maxEndpoints {
				return
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	add(urlRe.FindAllString(content, maxEndpoints))
	add(hostPortRe.FindAllString(content, maxEndpoints))

	return strings.Join(out, ", ")
}

func versionValue(content string) string {
	if m := versionRe.FindString(content); m != "" {
		return m
	}
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSpace(line)
	if len(line) > maxVersionLine {
		line = line[:maxVersionLine]
	}
	return line
}
