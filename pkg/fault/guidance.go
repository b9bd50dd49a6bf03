package fault

import (
	"errors"
	"io/fs"
)

type guidance struct {
	match   func(error) bool
	title   string
	message string
}

func kindMatcher(kind Kind) func(error) bool {
	return func(err error) bool { return Is(err, kind) }
}

// Order matters: the first matching entry wins, so filesystem causes are
// checked before the classified kinds that usually wrap them.
var guidanceTable = []guidance{
	{
		match:   func(err error) bool { return errors.Is(err, fs.ErrNotExist) },
		title:   "File Not Found",
		message: "Check the file path and ensure the shared drive is connected",
	},
	{
		match:   func(err error) bool { return errors.Is(err, fs.ErrPermission) },
		title:   "File Locked",
		message: "Close the file in Excel and try again",
	},
	{
		match:   kindMatcher(KindRetrieve),
		title:   "Retrieve Error",
		message: "Check the shared drive connection and source folder paths in config",
	},
	{
		match:   kindMatcher(KindData),
		title:   "Data Problem",
		message: "The ODD file format may have changed, check column names",
	},
	{
		match:   kindMatcher(KindConfig),
		title:   "Setup Issue",
		message: "Check ars.yaml and the client entry for this run",
	},
	{
		match:   kindMatcher(KindOutput),
		title:   "Output Error",
		message: "Ensure the output directory is writable and the deck template exists",
	},
}

// Guidance returns an operator-facing title and message for err.
func Guidance(err error) (string, string) {
	for _, g := range guidanceTable {
		if g.match(err) {
			return g.title, g.message
		}
	}
	return "Unexpected Error", "An unexpected error occurred. Check the log file for details."
}
