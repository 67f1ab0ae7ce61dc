// Package boot holds the process startup helpers shared by service mains.
package boot

import (
	"flag"
	"os"
	"strings"
)

// ParseFlags parses the command line flags allowing any flag to be set
// through an environment variable instead. The variable name is the flag name
// upper-cased with dots and dashes replaced by underscores and the provided
// prefix prepended, e.g. -aws.access.key becomes SCRIBE_AWS_ACCESS_KEY for
// the prefix "SCRIBE_". Explicit command line values win over the
// environment.
func ParseFlags(prefix string) {
	flag.VisitAll(func(f *flag.Flag) {
		name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(f.Name))
		if v := os.Getenv(prefix + name); v != "" {
			// Errors surface during flag.Parse if the command line also
			// sets a bad value; a bad env value is reported here.
			if err := f.Value.Set(v); err != nil {
				os.Stderr.WriteString("invalid value for " + prefix + name + ": " + err.Error() + "\n")
				os.Exit(2)
			}
		}
	})
	flag.Parse()
}
