package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(36) PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    business_name VARCHAR(255) NOT NULL DEFAULT '',
    password_hash VARCHAR(255) NOT NULL DEFAULT '',
    credits INT NOT NULL DEFAULT 0,
    package_code VARCHAR(16) NOT NULL,
    expires_at DATETIME(3) NULL,
    payment_pending TINYINT(1) NOT NULL DEFAULT 0,
    requested_package VARCHAR(16) NULL,
    version BIGINT NOT NULL DEFAULT 1,
    created_at DATETIME(3) NOT NULL,
    updated_at DATETIME(3) NOT NULL,
    CHECK (credits >= 0)
);

CREATE TABLE IF NOT EXISTS generation_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(36) NOT NULL,
    result_id VARCHAR(36) NOT NULL,
    business_type VARCHAR(32) NOT NULL,
    scene_style VARCHAR(32) NOT NULL,
    quality VARCHAR(8) NOT NULL,
    prompt TEXT NOT NULL,
    created_at DATETIME(3) NOT NULL,
    INDEX idx_generation_logs_user (user_id)
);

CREATE TABLE IF NOT EXISTS purchase_requests (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(36) NOT NULL,
    package_code VARCHAR(16) NOT NULL,
    event VARCHAR(16) NOT NULL,
    created_at DATETIME(3) NOT NULL,
    INDEX idx_purchase_requests_user (user_id)
);
`
