package cli

// Flags holds the global command-line flag values
type Flags struct {
	CfgFile  string
	LogLevel string
	LogJSON  bool
	DataDir  string
	Storage  string
	// JSON prints service results as JSON instead of text.
	JSON bool
}

// NewFlags creates a new Flags instance. Empty values leave the
// configuration file and the built-in defaults in charge.
func NewFlags() *Flags {
	return &Flags{}
}

// recipeFlags are the options of "recipes generate".
type recipeFlags struct {
	Category string
	Count    int
	Save     bool
}

// speakFlags are the options of "speak".
type speakFlags struct {
	Language string
	Voice    string
	Slow     bool
	OutDir   string
}

// translateFlags are the options of "translate".
type translateFlags struct {
	From      string
	To        string
	BatchFile string
	Output    string
}
