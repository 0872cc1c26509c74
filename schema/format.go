package schema

import (
	"strings"

	"github.com/eddielth/signal-monitor/telemetry"
)

const unknownDescription = "알 수 없음"

var abnormalDescriptions = map[int]string{
	0: "정상",
	1: "단선",
	2: "단락",
	3: "과전류",
	4: "저전류",
	5: "통신 이상",
}

// AbnormalDescription maps an abnormal state code to its description.
func AbnormalDescription(code int) string {
	if d, ok := abnormalDescriptions[code]; ok {
		return d
	}
	return unknownDescription
}

var outputStates = map[int]string{
	0: "OFF",
	1: "적색",
	2: "녹색",
	3: "녹색 점멸",
}

var directions = map[int]string{
	0: "북",
	1: "동",
	2: "남",
	3: "서",
	4: "북동",
	5: "남동",
	6: "남서",
	7: "북서",
}

var modes = map[int]string{
	0: "정상 모드",
	1: "정상 모드",
	2: "적색->녹색->황색 (100%) 테스트",
	3: "적색->녹색->황색 (20%) 테스트",
	4: "적색 밝기 테스트",
	5: "녹색 밝기 테스트",
	6: "황색 밝기 테스트",
	7: "데모 모드",
}

func suffix(unit string) Formatter {
	return func(v telemetry.Value) string {
		return v.String() + unit
	}
}

func lookup(table map[int]string, fallback string) Formatter {
	return func(v telemetry.Value) string {
		f, ok := v.Float()
		if !ok {
			return "-"
		}
		if s, ok := table[int(f)]; ok && float64(int(f)) == f {
			return s
		}
		return fallback
	}
}

var (
	formatOutput    = lookup(outputStates, "-")
	formatDirection = lookup(directions, "-")
	formatMode      = func(v telemetry.Value) string {
		if _, ok := v.Float(); !ok {
			return "-"
		}
		return lookup(modes, "테스트 모드")(v)
	}
)

func formatSwitch(v telemetry.Value) string {
	f, ok := v.Float()
	if ok && f != 0 {
		return "ON"
	}
	return "OFF"
}

// formatCurrent shows the first part of an "installed,current" pair, or the
// plain reading.
func formatCurrent(v telemetry.Value) string {
	s := v.String()
	if v.IsText() {
		s = strings.TrimSpace(strings.SplitN(s, ",", 2)[0])
	}
	if s == "" {
		return "-"
	}
	return s + "mA"
}
