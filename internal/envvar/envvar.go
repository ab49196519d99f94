package envvar

const (
	// SalienceEnv is the environment variable used to determine the environment
	SalienceEnv = "SALIENCE_ENV"

	// SalienceModelsPath is the environment variable overriding the models directory
	SalienceModelsPath = "SALIENCE_MODELS_PATH"

	// SalienceServerHTTPPort is the environment variable used to determine the HTTP port
	SalienceServerHTTPPort = "SALIENCE_SERVER_HTTP_PORT"
)
