package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/constants"
)

const sampleResume = `John Smith
San Francisco, United States
john.smith@example.com | +1 415-555-0199
linkedin.com/in/john-smith | github.com/johnsmith | https://johnsmith.dev

Professional Summary
Backend engineer focused on distributed systems.
Shipped several high-traffic services on AWS.

Work Experience
Senior Backend Developer
Acme Technologies Inc
2021 - Present
Backend Developer
Globex Corporation
2018 2021

Education
Bachelor of Science in Computer Science
Stanford University
2014 2018

Skills
Python, Go, Django, PostgreSQL, Docker, Kubernetes, AWS

Certifications
AWS Certified Solutions Architect
Certified Kubernetes Administrator

Languages
English, Spanish

8 years of experience in backend development.
References available upon request.
`

func TestExtractEmail(t *testing.T) {
	assert.Equal(t, "john.smith@example.com", ExtractEmail(sampleResume))
	assert.Equal(t, "", ExtractEmail("没有邮箱的文本"))
}

func TestExtractPhone(t *testing.T) {
	phone := ExtractPhone(sampleResume)
	require.NotEmpty(t, phone)
	assert.Contains(t, phone, "415")

	// 数字不足10位的序列不应被当成电话
	assert.Equal(t, "", ExtractPhone("call 123-4567"))
}

func TestExtractName(t *testing.T) {
	assert.Equal(t, "John Smith", ExtractName(sampleResume))
}

func TestExtractSkills(t *testing.T) {
	skills := ExtractSkills(sampleResume)
	assert.Contains(t, skills, "Python")
	assert.Contains(t, skills, "Go")
	assert.Contains(t, skills, "Django")
	assert.Contains(t, skills, "Postgresql")
	assert.Contains(t, skills, "Aws")

	// 去重
	seen := make(map[string]int)
	for _, s := range skills {
		seen[s]++
		assert.Equal(t, 1, seen[s], "技能 %s 重复出现", s)
	}
}

func TestExtractEducation(t *testing.T) {
	edu := ExtractEducation(sampleResume)
	require.NotEmpty(t, edu)
	assert.Contains(t, edu[0], "Bachelor")
	assert.Contains(t, edu[0], "Stanford University")
	assert.LessOrEqual(t, len(edu), 3)
}

func TestExtractExperienceYears(t *testing.T) {
	assert.Equal(t, "8 years", ExtractExperienceYears(sampleResume))
	assert.Equal(t, "5 years", ExtractExperienceYears("Experience of 5 years in testing"))
	assert.Equal(t, "", ExtractExperienceYears("no duration here"))
}

func TestExtractExperience(t *testing.T) {
	exp := ExtractExperience(sampleResume)
	require.NotEmpty(t, exp)
	assert.Contains(t, exp[0], "Senior Backend Developer")
	assert.Contains(t, exp[0], "Acme Technologies Inc")
	assert.LessOrEqual(t, len(exp), 3)
}

func TestExtractLinks(t *testing.T) {
	assert.Equal(t, "linkedin.com/in/john-smith", ExtractLinkedIn(sampleResume))
	assert.Equal(t, "github.com/johnsmith", ExtractGitHub(sampleResume))

	portfolio := ExtractPortfolio(sampleResume)
	assert.Contains(t, portfolio, "johnsmith.dev")
	// 社交平台链接不应被当作个人网站
	assert.NotContains(t, portfolio, "linkedin")
}

func TestExtractLocation(t *testing.T) {
	assert.Equal(t, "San Francisco, United States", ExtractLocation(sampleResume))
	assert.Equal(t, "Berlin", ExtractLocation("Address: Berlin"))
}

func TestExtractDateOfBirth(t *testing.T) {
	assert.Equal(t, "12/05/1990", ExtractDateOfBirth("DOB: 12/05/1990"))
	assert.Equal(t, "15-08-1988", ExtractDateOfBirth("Born in 15-08-1988 ... wait"))
	assert.Equal(t, "", ExtractDateOfBirth("no dates"))
}

func TestExtractNationality(t *testing.T) {
	assert.Equal(t, "German", ExtractNationality("Nationality: German"))
	assert.Equal(t, "American", ExtractNationality("An American citizen living abroad"))
}

func TestExtractSummary(t *testing.T) {
	summary := ExtractSummary(sampleResume)
	assert.Contains(t, summary, "distributed systems")
	// 遇到下一节标题就该停
	assert.NotContains(t, summary, "Acme")
}

func TestExtractCurrentPositionAndCompany(t *testing.T) {
	assert.Equal(t, "Senior Backend Developer", ExtractCurrentPosition(sampleResume))
	// 第一段经历的时段含Present，公司算当前公司
	assert.Equal(t, "Acme Technologies Inc", ExtractCurrentCompany(sampleResume))
}

func TestExtractLanguages(t *testing.T) {
	langs := ExtractLanguages(sampleResume)
	assert.Contains(t, langs, "English")
	assert.Contains(t, langs, "Spanish")

	// 没有语言小节时缺省English
	assert.Equal(t, []string{"English"}, ExtractLanguages("plain text"))
}

func TestExtractCertifications(t *testing.T) {
	certs := ExtractCertifications(sampleResume)
	require.NotEmpty(t, certs)
	assert.Contains(t, certs[0], "AWS Certified")
	assert.LessOrEqual(t, len(certs), 5)
}

func TestExtractReferences(t *testing.T) {
	assert.Equal(t, "Available upon request", ExtractReferences(sampleResume))
}

func TestParseResumeText(t *testing.T) {
	r := ParseResumeText(sampleResume)
	assert.Equal(t, constants.ParsingMethodHeuristic, r.ParsingMethod)
	assert.Equal(t, "John Smith", r.FullName)
	assert.Equal(t, "john.smith@example.com", r.Email)
	assert.NotEmpty(t, r.Skills)
	assert.NotEmpty(t, r.Experience)
	assert.Empty(t, r.Error)
}

// TestParseResumeTextEmpty 空文本直接给failed标记和可回填的空表单
func TestParseResumeTextEmpty(t *testing.T) {
	r := ParseResumeText("   \n ")
	assert.Equal(t, constants.ParsingMethodFailed, r.ParsingMethod)
	assert.NotNil(t, r.Skills)
	assert.NotNil(t, r.Education)
}

// TestParseResumeTextPartial 单个抽取器没命中不影响其它字段
func TestParseResumeTextPartial(t *testing.T) {
	r := ParseResumeText("contact me at jane@corp.io, I know Python and Docker")
	assert.Equal(t, "jane@corp.io", r.Email)
	assert.Contains(t, r.Skills, "Python")
	assert.Empty(t, r.Phone)
	assert.Empty(t, r.Education)
	assert.Equal(t, constants.ParsingMethodHeuristic, r.ParsingMethod)
}
