package moltbook

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// 验证题是混入符号噪声与大小写扰动的龙虾主题应用题
// 例: "A] lO^bSt-Er SwImS aT tWeNtY aNd SlOwS bY fIvE" → 20 - 5 = 15.00

var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "sixty": 60, "seventy": 70, "eighty": 80,
	"ninety": 90, "hundred": 100,
}

var (
	nonAlphaRe = regexp.MustCompile(`[^a-zA-Z\s]`)
	digitsRe   = regexp.MustCompile(`\b\d+\b`)
)

var (
	subtractOps = []string{"slows", "minus", "subtract", "less", "fewer", "lose", "loses", "drops"}
	addOps      = []string{"speeds up", "faster", "gains", "plus", "add", "more", "increases"}
	multiplyOps = []string{"times", "multiplied", "multiply"}
	divideOps   = []string{"divided", "divide", "split", "half"}
)

// SolveChallenge 解混淆算术题, 返回保留两位小数的答案
func SolveChallenge(challenge string) string {
	clean := strings.ToLower(nonAlphaRe.ReplaceAllString(challenge, " "))
	clean = strings.Join(strings.Fields(clean), " ")

	// 数词替换成数字, 长词优先避免部分命中
	words := make([]string, 0, len(numberWords))
	for w := range numberWords {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	modified := clean
	for _, w := range words {
		re := regexp.MustCompile(`\b` + w + `\b`)
		modified = re.ReplaceAllString(modified, fmt.Sprintf(" %d ", numberWords[w]))
	}

	nums := digitsRe.FindAllString(modified, -1)
	if len(nums) < 2 {
		return "0.00"
	}
	a, _ := strconv.ParseFloat(nums[0], 64)
	b, _ := strconv.ParseFloat(nums[1], 64)

	var result float64
	switch {
	case containsAny(clean, subtractOps):
		result = a - b
	case containsAny(clean, addOps):
		result = a + b
	case containsAny(clean, multiplyOps):
		result = a * b
	case containsAny(clean, divideOps):
		if b != 0 {
			result = a / b
		}
	default:
		result = a + b
	}

	return fmt.Sprintf("%.2f", result)
}

func containsAny(s string, ops []string) bool {
	for _, op := range ops {
		if strings.Contains(s, op) {
			return true
		}
	}
	return false
}
