package service

import (
	"fmt"
	"image/color"

	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
)

// 第三个框只在图片宽高都超过阈值时出现
const (
	LargeImageMinWidth  = 500
	LargeImageMinHeight = 400
)

// Box 一个待绘制的检测框
type Box struct {
	model.Detection
	Color color.RGBA
}

var (
	personBox = Box{
		Detection: model.Detection{Object: "Person", Confidence: 0.95, BBox: model.BBox{50, 50, 200, 200}},
		Color:     color.RGBA{R: 0, G: 255, B: 0, A: 0},
	}
	carBox = Box{
		Detection: model.Detection{Object: "Car", Confidence: 0.88, BBox: model.BBox{300, 150, 450, 350}},
		Color:     color.RGBA{R: 0, G: 0, B: 255, A: 0},
	}
	dogBox = Box{
		Detection: model.Detection{Object: "Dog", Confidence: 0.92, BBox: model.BBox{100, 300, 300, 450}},
		Color:     color.RGBA{R: 255, G: 0, B: 0, A: 0},
	}
)

// DetectBoxes 根据图片尺寸返回固定的检测框，不读取像素内容
func DetectBoxes(size model.ImageSize) []Box {
	boxes := []Box{personBox, carBox}
	if size.Width > LargeImageMinWidth && size.Height > LargeImageMinHeight {
		boxes = append(boxes, dogBox)
	}
	return boxes
}

// Detections 去掉绘制信息，只保留响应中需要的字段
func Detections(boxes []Box) []model.Detection {
	out := make([]model.Detection, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, b.Detection)
	}
	return out
}

// Caption 框上方的标签文字，例如 "Person: 0.95"
func Caption(d model.Detection) string {
	return fmt.Sprintf("%s: %.2f", d.Object, d.Confidence)
}

// Annotation 一次标注的结果
type Annotation struct {
	Size       model.ImageSize
	Detections []model.Detection
}
