package config

const (
	defaultOutputDir               = "./output"
	defaultLogDir                  = "~/.local/share/notesflow/logs"
	defaultStateDir                = "~/.local/share/notesflow"
	defaultExportSource            = "script"
	defaultExportCommand           = "osascript"
	defaultExportScriptPath        = "~/.config/notesflow/export_notes.scpt"
	defaultExportTimeoutSeconds    = 600
	defaultRenderer                = "pdftoppm"
	defaultRenderScale             = 2
	defaultRenderTimeoutSeconds    = 120
	defaultRecognitionEngine       = "tesseract"
	defaultRecognitionCommand      = "tesseract"
	defaultRecognitionProfile      = "default"
	defaultRecognitionPageSegMode  = 3
	defaultRecognitionTimeout      = 300
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                = "anthropic/claude-3.7-sonnet"
	defaultLLMReferer              = "https://github.com/ocasazza/apple-notes-ocr-flow"
	defaultLLMTitle                = "notesflow"
	defaultLLMTimeoutSeconds       = 180
	defaultLLMMinKeyLength         = 10
	defaultLLMProbeMaxTokens       = 10
	defaultLLMRetryMaxChars        = 50000
	defaultLLMRetryMaxTokens       = 4000
	defaultLLMErrorExcerptChars    = 10000
	defaultLLMPacingSeconds        = 1
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultHistoryEnabled          = true
	defaultRecognitionLanguageCode = "eng"
)

// DefaultPrompt is the instruction sent ahead of every recognized text artifact.
const DefaultPrompt = `Please analyze this text that was extracted from handwritten notes using OCR techniques.
There may be spelling mistakes in the output of the OCR.
1) Please use context clues to try correct any spelling mistakes.
2) Convert the text output to markdown format
3) Use context clues to improve the structure of the markdown output and usage of markdown macros.
4) The only content you should return should be in markdown format, so a script can save the text response in the content as a file.`

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Export: Export{
			Source:         defaultExportSource,
			Command:        defaultExportCommand,
			ScriptPath:     defaultExportScriptPath,
			TimeoutSeconds: defaultExportTimeoutSeconds,
			ImageTypes:     []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"},
		},
		Normalize: Normalize{
			Renderer:            defaultRenderer,
			Scale:               defaultRenderScale,
			AlternativeRenderer: true,
			TimeoutSeconds:      defaultRenderTimeoutSeconds,
		},
		Recognition: Recognition{
			Engine:         defaultRecognitionEngine,
			Command:        defaultRecognitionCommand,
			Profile:        defaultRecognitionProfile,
			Languages:      []string{defaultRecognitionLanguageCode},
			PageSegMode:    defaultRecognitionPageSegMode,
			TimeoutSeconds: defaultRecognitionTimeout,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Referer:           defaultLLMReferer,
			Title:             defaultLLMTitle,
			Prompt:            DefaultPrompt,
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			MinKeyLength:      defaultLLMMinKeyLength,
			ProbeMaxTokens:    defaultLLMProbeMaxTokens,
			RetryMaxChars:     defaultLLMRetryMaxChars,
			RetryMaxTokens:    defaultLLMRetryMaxTokens,
			ErrorExcerptChars: defaultLLMErrorExcerptChars,
			PacingSeconds:     defaultLLMPacingSeconds,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
