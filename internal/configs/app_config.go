package configs

type Configs struct {
	// App configuration
	AppName               string  `mapstructure:"app_name"`
	AppEnv                string  `mapstructure:"app_env"`
	AppLogLevel           string  `mapstructure:"app_log_level"`
	AppMetricSamplingRate float64 `mapstructure:"app_metric_sampling_rate"`
	AppPort               int     `mapstructure:"app_port"`

	// MySQL configuration
	MysqlDbName         string `mapstructure:"mysql_db_name"`
	MysqlMasterHost     string `mapstructure:"mysql_master_host"`
	MysqlMasterPassword string `mapstructure:"mysql_master_password"`
	MysqlMasterPort     int    `mapstructure:"mysql_master_port"`
	MysqlMasterUsername string `mapstructure:"mysql_master_username"`
	MysqlSlaveHost      string `mapstructure:"mysql_slave_host"`
	MysqlSlavePassword  string `mapstructure:"mysql_slave_password"`
	MysqlSlavePort      int    `mapstructure:"mysql_slave_port"`
	MysqlSlaveUsername  string `mapstructure:"mysql_slave_username"`

	// Artifact storage configuration
	StorageBackend     string `mapstructure:"storage_backend"`
	StorageBucket      string `mapstructure:"storage_bucket"`
	StorageBasePath    string `mapstructure:"storage_base_path"`
	GcsCredentialsJson string `mapstructure:"gcs_credentials_json"`
	S3AccessKeyId      string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey  string `mapstructure:"s3_secret_access_key"`
	S3Region           string `mapstructure:"s3_region"`
	S3Endpoint         string `mapstructure:"s3_endpoint"`

	// Converter sidecar endpoints. An empty endpoint means the framework
	// extra is not installed and conversion requests for it fail fast.
	SklearnConverterUrl  string `mapstructure:"sklearn_converter_url"`
	LightgbmConverterUrl string `mapstructure:"lightgbm_converter_url"`
	KerasConverterUrl    string `mapstructure:"keras_converter_url"`
	TorchConverterUrl    string `mapstructure:"torch_converter_url"`
	ConverterTimeoutMs   int    `mapstructure:"converter_timeout_ms"`
}
