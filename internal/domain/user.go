package domain

import "time"

// User 用户档案（只读：由外部账号体系维护，管道只消费生理参数）
type User struct {
	UserID      string    `json:"user_id"`       // UUID
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Gender      string    `json:"gender"`        // "Male" / "Female"
	DateOfBirth time.Time `json:"date_of_birth"`
	WeightKg    float64   `json:"weight_kg"`
	HeightM     float64   `json:"height_m"`
}

// Age 根据出生日期计算当前年龄
func (u *User) Age() int {
	return u.AgeAt(time.Now())
}

// AgeAt 计算指定时刻的年龄
func (u *User) AgeAt(now time.Time) int {
	if u.DateOfBirth.IsZero() {
		return 0
	}
	age := now.Year() - u.DateOfBirth.Year()
	// 生日未到则减一岁
	if now.Month() < u.DateOfBirth.Month() ||
		(now.Month() == u.DateOfBirth.Month() && now.Day() < u.DateOfBirth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// HasBiometrics 判断档案是否具备预测所需的生理参数（身高必须大于 0）
func (u *User) HasBiometrics() bool {
	return u.HeightM > 0 && u.WeightKg > 0
}
