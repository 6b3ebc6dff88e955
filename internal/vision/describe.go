package vision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StateMoment renders the searchable appearance description stored with a face.
func StateMoment(age int, gender Gender, quality float32) string {
	var group string
	switch {
	case age < 18:
		group = "học sinh"
	case age < 25:
		group = "sinh viên"
	case age < 35:
		group = "người trẻ"
	case age < 50:
		group = "người trung niên"
	default:
		group = "người lớn tuổi"
	}

	parts := []string{group + " " + string(gender)}
	switch {
	case quality > 0.8:
		parts = append(parts, "ảnh chất lượng cao")
	case quality > 0.6:
		parts = append(parts, "ảnh chất lượng tốt")
	}
	parts = append(parts, "da vàng")
	if gender == GenderMale {
		parts = append(parts, "đẹp trai")
	} else {
		parts = append(parts, "xinh đẹp")
	}
	return strings.Join(parts, ", ")
}

var gradePattern = regexp.MustCompile(`^(\d{1,2})`)

// DefaultClassAge is used when a class name carries no usable grade.
const DefaultClassAge = 18

// ClassToAge estimates age from a class name such as "10A1".
func ClassToAge(class string) int {
	m := gradePattern.FindStringSubmatch(strings.TrimSpace(class))
	if m == nil {
		return DefaultClassAge
	}
	grade, _ := strconv.Atoi(m[1])
	switch {
	case grade >= 1 && grade <= 12:
		return 5 + grade
	case grade >= 13 && grade <= 16:
		return 18 + grade - 13
	default:
		return DefaultClassAge
	}
}

func AgeGroupFromClass(class string) string {
	age := ClassToAge(class)
	switch {
	case age <= 10:
		return "học sinh tiểu học"
	case age <= 14:
		return "học sinh trung học cơ sở"
	case age <= 17:
		return "học sinh trung học phổ thông"
	case age <= 22:
		return "sinh viên"
	default:
		return "người trẻ"
	}
}

// UserAge renders the age text stored with a face, e.g. "15 tuổi, học sinh trung học phổ thông".
func UserAge(class string) string {
	return fmt.Sprintf("%d tuổi, %s", ClassToAge(class), AgeGroupFromClass(class))
}
