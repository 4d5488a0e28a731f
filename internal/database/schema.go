package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255),
    display_name VARCHAR(255),
    avatar_url VARCHAR(1024),
    credits INT NOT NULL DEFAULT 0,
    has_purchased TINYINT(1) NOT NULL DEFAULT 0,
    unlimited TINYINT(1) NOT NULL DEFAULT 0,
    onboarding_completed TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    CONSTRAINT chk_profiles_credits CHECK (credits >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS generations (
    id CHAR(36) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    room_type VARCHAR(32) NOT NULL,
    style_id VARCHAR(64) NOT NULL,
    style_prompt TEXT NOT NULL,
    custom_prompt TEXT,
    prompt TEXT NOT NULL,
    negative_prompt TEXT NOT NULL,
    input_url VARCHAR(1024) NOT NULL,
    output_urls JSON,
    status VARCHAR(16) NOT NULL,
    error TEXT,
    prediction_id VARCHAR(128),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMP NULL,
    INDEX idx_generations_user (user_id, created_at),
    INDEX idx_generations_status (status, created_at),
    FOREIGN KEY (user_id) REFERENCES profiles(id)
)`,
	`CREATE TABLE IF NOT EXISTS pricing_plans (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    currency VARCHAR(8) NOT NULL,
    price_minor_units INT NOT NULL,
    credits INT NOT NULL,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS purchases (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    plan_id BIGINT NULL,
    provider VARCHAR(64) NOT NULL,
    reference VARCHAR(128),
    currency VARCHAR(8) NOT NULL,
    amount INT NOT NULL,
    status VARCHAR(16) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES profiles(id)
)`,
	`CREATE TABLE IF NOT EXISTS site_content (
    content_key VARCHAR(128) PRIMARY KEY,
    content_value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,
}
