package poll

import "fmt"

// The slug universe: every parameter the controller family can
// expose. Discovery probes this list against the loaded register map
// and the live device; only responsive slugs are polled afterwards.

const circuitCount = 7

var halfDaySuffixes = []string{
	"mondayam", "mondaypm",
	"tuesdayam", "tuesdaypm",
	"wednesdayam", "wednesdaypm",
	"thursdayam", "thursdaypm",
	"fridayam", "fridaypm",
	"saturdayam", "saturdaypm",
	"sundayam", "sundaypm",
}

var sensorSlugs = []string{
	"tempwthr",
	"boilerpower",
	"worktime",
	"tempcwu",
	"tempbuforup",
	"tempbufordown",
	"tempclutch",
	"buforsetpoint",
}

var numberSlugs = []string{
	"hdwtsetpoint",
	"hdwminsettemp",
	"hdwmaxsettemp",
}

var waterHeaterSlugs = []string{
	"tempcwu",
	"hdwtsetpoint",
	"hdwminsettemp",
	"hdwmaxsettemp",
	"hdwusermode",
	"hdwstartoneloading",
}

// Universe returns the full candidate slug list, duplicates included;
// discovery dedupes.
func Universe() []string {
	var out []string
	out = append(out, sensorSlugs...)

	for i := 1; i <= circuitCount; i++ {
		out = append(out,
			fmt.Sprintf("tempcircuit%d", i),
			fmt.Sprintf("circuit%dthermostattemp", i),
			fmt.Sprintf("mixer%dvalveposition", i),
			fmt.Sprintf("circuit%dcomforttemp", i),
			fmt.Sprintf("circuit%decotemp", i),
			fmt.Sprintf("circuit%dworkstate", i),
		)
	}

	out = append(out, numberSlugs...)
	out = append(out, waterHeaterSlugs...)

	for i := 1; i <= circuitCount; i++ {
		for _, suffix := range halfDaySuffixes {
			out = append(out, fmt.Sprintf("circuit%d%s", i, suffix))
		}
	}
	for _, suffix := range halfDaySuffixes {
		out = append(out, "hdw"+suffix)
	}
	return out
}
